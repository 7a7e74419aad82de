package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Subscription ties a tenant to a plan for a billing cycle. Amount is
// the resolved price for the full period, frozen at creation or on the
// last plan change.
type Subscription struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`

	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
	BillingCycle       types.BillingCycle       `json:"billing_cycle"`
	Quantity           int                      `json:"quantity"`
	Amount             decimal.Decimal          `json:"amount"`
	Currency           string                   `json:"currency"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	// BillingAnchorDay is the day-of-month renewals aim for; short
	// months clamp the period end without losing the anchor.
	BillingAnchorDay int `json:"billing_anchor_day"`

	TrialStart *time.Time `json:"trial_start,omitempty"`
	TrialEnd   *time.Time `json:"trial_end,omitempty"`

	AutoRenew    bool       `json:"auto_renew"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	PausedAt     *time.Time `json:"paused_at,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

// IsEntitled reports whether the tenant currently has access to the
// plan's features through this subscription.
func (s *Subscription) IsEntitled() bool {
	return s.SubscriptionStatus.IsBillable()
}

// InTrial reports whether the subscription is trialing at the given time.
func (s *Subscription) InTrial(at time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusTrialing &&
		s.TrialEnd != nil && at.Before(*s.TrialEnd)
}

func (s *Subscription) Validate() error {
	if s.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant id is required").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("Plan id is required").
			Mark(ierr.ErrValidation)
	}
	if s.Quantity < 1 {
		return ierr.NewError("invalid quantity").
			WithHint("Quantity must be at least 1").
			WithReportableDetails(map[string]any{
				"quantity": s.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if s.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if s.CurrentPeriodEnd.Before(s.CurrentPeriodStart) {
		return ierr.NewError("invalid billing period").
			WithHint("Current period end must not precede period start").
			Mark(ierr.ErrValidation)
	}
	return nil
}
