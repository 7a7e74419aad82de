package dto

import (
	"context"

	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type CreateSubscriptionRequest struct {
	TenantID     string             `json:"tenant_id" validate:"required"`
	PlanID       string             `json:"plan_id" validate:"required"`
	BillingCycle types.BillingCycle `json:"billing_cycle" validate:"required"`
	Quantity     int                `json:"quantity" validate:"required,min=1"`
	AutoRenew    *bool              `json:"auto_renew,omitempty"`
	Metadata     types.Metadata     `json:"metadata,omitempty"`
}

// ToSubscription builds the domain model with identity and audit fields
// filled in. Pricing, status and period fields are set by the service.
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context) *subscription.Subscription {
	autoRenew := true
	if r.AutoRenew != nil {
		autoRenew = *r.AutoRenew
	}
	// The subscription is owned by the subscribing tenant, not the
	// caller's tenant.
	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = r.TenantID
	return &subscription.Subscription{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		TenantID:     r.TenantID,
		PlanID:       r.PlanID,
		BillingCycle: r.BillingCycle,
		Quantity:     r.Quantity,
		AutoRenew:    autoRenew,
		Metadata:     r.Metadata,
		BaseModel:    base,
	}
}

type StartTrialRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	PlanID   string `json:"plan_id" validate:"required"`
}

type UpdateSubscriptionRequest struct {
	PlanID       string             `json:"plan_id" validate:"required"`
	BillingCycle types.BillingCycle `json:"billing_cycle" validate:"required"`
	Quantity     int                `json:"quantity" validate:"required,min=1"`
}

type CancelSubscriptionRequest struct {
	Reason    string `json:"reason"`
	Immediate bool   `json:"immediate"`
}

type PauseSubscriptionRequest struct {
	Reason string `json:"reason"`
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

func NewSubscriptionResponse(s *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{Subscription: s}
}

type ListSubscriptionsResponse struct {
	Items      []*SubscriptionResponse  `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}

type FeatureCheckResponse struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type FeatureLimitResponse struct {
	Feature string `json:"feature"`
	Limit   int64  `json:"limit"`
}
