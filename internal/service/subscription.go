package service

import (
	"context"
	"strings"
	"time"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
)

// SubscriptionService drives the subscription lifecycle. A tenant holds
// at most one ACTIVE or TRIALING subscription at a time.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	StartTrial(ctx context.Context, req *dto.StartTrialRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetActiveSubscription(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	UpdateSubscription(ctx context.Context, id string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	PauseSubscription(ctx context.Context, id string, req *dto.PauseSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// RenewSubscription advances the billing period by one cycle from the
	// current period end. Callers are expected to collect payment for the
	// new period separately.
	RenewSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// ActivateSubscription moves a subscription to ACTIVE after a
	// successful payment. A lapsed period is advanced first.
	ActivateSubscription(ctx context.Context, id string) error

	// MarkPastDue flags a subscription whose renewal charge failed.
	MarkPastDue(ctx context.Context, id string, reason string) error

	HasFeature(ctx context.Context, tenantID, feature string) (*dto.FeatureCheckResponse, error)
	GetFeatureLimit(ctx context.Context, tenantID, feature string) (*dto.FeatureLimitResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := req.BillingCycle.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.SubRepo.GetActiveByTenant(ctx, req.TenantID); err == nil && existing != nil {
		return nil, ierr.NewError("tenant already has an active subscription").
			WithHint("Cancel the current subscription before creating a new one").
			WithReportableDetails(map[string]any{
				"subscription_id":     existing.ID,
				"subscription_status": existing.SubscriptionStatus,
			}).
			Mark(ierr.ErrAlreadyExists)
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ierr.NewError("plan is not active").
			WithHint("Inactive plans cannot be subscribed to").
			WithReportableDetails(map[string]any{
				"plan_id": p.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	sub := req.ToSubscription(ctx)
	sub.Currency = p.Currency
	sub.Amount = resolveAmount(p, req.BillingCycle, req.Quantity)
	sub.SubscriptionStatus = types.SubscriptionStatusIncomplete
	sub.StartDate = now
	sub.CurrentPeriodStart = now
	sub.BillingAnchorDay = now.Day()
	sub.CurrentPeriodEnd = types.NextBillingDate(now, sub.BillingAnchorDay, req.BillingCycle)

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
		"plan_id", sub.PlanID,
		"billing_cycle", sub.BillingCycle,
		"amount", sub.Amount)
	return dto.NewSubscriptionResponse(sub), nil
}

// StartTrial opens a trialing subscription on the plan's trial window.
// Trials are monthly, single quantity, and convert through the normal
// payment path when they expire.
func (s *subscriptionService) StartTrial(ctx context.Context, req *dto.StartTrialRequest) (*dto.SubscriptionResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	if existing, err := s.SubRepo.GetActiveByTenant(ctx, req.TenantID); err == nil && existing != nil {
		return nil, ierr.NewError("tenant already has an active subscription").
			WithHint("Cancel the current subscription before starting a trial").
			WithReportableDetails(map[string]any{
				"subscription_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if p.TrialDays <= 0 {
		return nil, ierr.NewError("plan does not offer a trial").
			WithHint("The plan has no trial period configured").
			WithReportableDetails(map[string]any{
				"plan_id": p.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, p.TrialDays)

	sub := (&dto.CreateSubscriptionRequest{
		TenantID:     req.TenantID,
		PlanID:       req.PlanID,
		BillingCycle: types.BILLING_CYCLE_MONTHLY,
		Quantity:     1,
	}).ToSubscription(ctx)
	sub.Currency = p.Currency
	sub.Amount = resolveAmount(p, types.BILLING_CYCLE_MONTHLY, 1)
	sub.SubscriptionStatus = types.SubscriptionStatusTrialing
	sub.StartDate = now
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = trialEnd
	sub.BillingAnchorDay = now.Day()
	sub.TrialStart = &now
	sub.TrialEnd = &trialEnd

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("started trial",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
		"trial_end", trialEnd)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetActiveSubscription(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{}
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, dto.NewSubscriptionResponse(sub))
	}

	return &dto.ListSubscriptionsResponse{
		Items: items,
		Pagination: types.PaginationResponse{
			Total:  total,
			Limit:  filter.GetLimit(),
			Offset: filter.GetOffset(),
		},
	}, nil
}

// UpdateSubscription switches plan, cycle or quantity and refreezes the
// amount at the new price. The current period is left untouched; the new
// amount takes effect from the next renewal charge.
func (s *subscriptionService) UpdateSubscription(ctx context.Context, id string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := req.BillingCycle.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("Canceled subscriptions cannot be changed").
			Mark(ierr.ErrInvalidOperation)
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ierr.NewError("plan is not active").
			WithHint("Inactive plans cannot be subscribed to").
			Mark(ierr.ErrInvalidOperation)
	}

	sub.PlanID = p.ID
	sub.BillingCycle = req.BillingCycle
	sub.Quantity = req.Quantity
	sub.Amount = resolveAmount(p, req.BillingCycle, req.Quantity)
	sub.Currency = p.Currency
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("updated subscription",
		"subscription_id", sub.ID,
		"plan_id", sub.PlanID,
		"amount", sub.Amount)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string, req *dto.PauseSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("only active subscriptions can be paused").
			WithHint("Only active subscriptions can be paused").
			WithReportableDetails(map[string]any{
				"subscription_status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusPaused
	sub.PausedAt = &now
	if req != nil && req.Reason != "" {
		sub.Metadata = sub.Metadata.Merge(types.Metadata{"pause_reason": req.Reason})
	}
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("paused subscription", "subscription_id", sub.ID)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusPaused {
		return nil, ierr.NewError("subscription is not paused").
			WithHint("Only paused subscriptions can be resumed").
			WithReportableDetails(map[string]any{
				"subscription_status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.PausedAt = nil
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("resumed subscription", "subscription_id", sub.ID)
	return dto.NewSubscriptionResponse(sub), nil
}

// CancelSubscription ends a subscription. Immediate cancellation revokes
// access right away; otherwise the subscription stays active until the
// current period ends and simply stops renewing.
func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription already canceled").
			WithHint("The subscription is already canceled").
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	sub.CancelledAt = &now
	if req != nil {
		sub.CancelReason = req.Reason
	}

	if req != nil && req.Immediate {
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		sub.EndDate = &now
	} else {
		periodEnd := sub.CurrentPeriodEnd
		sub.AutoRenew = false
		sub.EndDate = &periodEnd
	}
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("canceled subscription",
		"subscription_id", sub.ID,
		"immediate", req != nil && req.Immediate,
		"end_date", sub.EndDate)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) RenewSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sub.SubscriptionStatus {
	case types.SubscriptionStatusActive, types.SubscriptionStatusPastDue:
	default:
		return nil, ierr.NewError("subscription cannot be renewed").
			WithHint("Only active or past due subscriptions renew").
			WithReportableDetails(map[string]any{
				"subscription_status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !sub.AutoRenew {
		return nil, ierr.NewError("auto renew is disabled").
			WithHint("The subscription does not renew automatically").
			Mark(ierr.ErrInvalidOperation)
	}

	// Advance from the period end, not from now, so late sweeps do not
	// shift the billing anchor.
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = types.NextBillingDate(sub.CurrentPeriodEnd, sub.BillingAnchorDay, sub.BillingCycle)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("renewed subscription",
		"subscription_id", sub.ID,
		"period_start", sub.CurrentPeriodStart,
		"period_end", sub.CurrentPeriodEnd)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, id string) error {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return ierr.NewError("subscription is canceled").
			WithHint("Canceled subscriptions cannot be activated").
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	if !sub.CurrentPeriodEnd.After(now) {
		sub.CurrentPeriodStart = sub.CurrentPeriodEnd
		sub.CurrentPeriodEnd = types.NextBillingDate(sub.CurrentPeriodEnd, sub.BillingAnchorDay, sub.BillingCycle)
	}
	sub.SubscriptionStatus = types.SubscriptionStatusActive

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.Logger.Infow("activated subscription", "subscription_id", sub.ID)
	return nil
}

func (s *subscriptionService) MarkPastDue(ctx context.Context, id string, reason string) error {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	if reason != "" {
		sub.Metadata = sub.Metadata.Merge(types.Metadata{"past_due_reason": reason})
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.Logger.Warnw("subscription past due", "subscription_id", sub.ID, "reason", reason)
	return nil
}

// HasFeature reports whether the tenant's current plan enables a boolean
// feature. Feature values "true" and "enabled" count as on, any other
// value or a missing subscription counts as off.
func (s *subscriptionService) HasFeature(ctx context.Context, tenantID, feature string) (*dto.FeatureCheckResponse, error) {
	resp := &dto.FeatureCheckResponse{Feature: feature}

	sub, err := s.SubRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return resp, nil
		}
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	value, ok := p.Features[feature]
	if !ok {
		return resp, nil
	}
	switch strings.ToLower(value) {
	case "true", "enabled":
		resp.Enabled = true
	}
	return resp, nil
}

// GetFeatureLimit returns the plan's quota for a feature scaled by the
// subscription quantity. Missing subscriptions or limits resolve to
// zero.
func (s *subscriptionService) GetFeatureLimit(ctx context.Context, tenantID, feature string) (*dto.FeatureLimitResponse, error) {
	resp := &dto.FeatureLimitResponse{Feature: feature}

	sub, err := s.SubRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return resp, nil
		}
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	limit, ok := p.Limits[feature]
	if !ok {
		return resp, nil
	}

	resp.Limit = limit * int64(sub.Quantity)
	return resp, nil
}
