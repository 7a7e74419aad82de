package service

import (
	"context"
	"time"

	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// SweepService runs the periodic maintenance passes. Each pass is
// driven by an external scheduler hitting the cron endpoints; a failure
// on one record is logged and the pass moves on.
type SweepService interface {
	// ProcessDueRenewals advances auto-renewing subscriptions whose
	// period has ended. A subscription that fails to renew is marked
	// PAST_DUE instead of stopping the sweep.
	ProcessDueRenewals(ctx context.Context) (*SweepResult, error)

	// ProcessExpiredTrials moves TRIALING subscriptions past their trial
	// end back to INCOMPLETE until a payment converts them.
	ProcessExpiredTrials(ctx context.Context) (*SweepResult, error)

	// ProcessExpiredSubscriptions cancels non-renewing subscriptions
	// whose end date has passed.
	ProcessExpiredSubscriptions(ctx context.Context) (*SweepResult, error)

	ProcessStalePayments(ctx context.Context) (*SweepResult, error)
	ProcessOverdueInvoices(ctx context.Context) (*SweepResult, error)

	// RunAll executes every sweep once, in dependency order. A sweep
	// that errors is recorded and the run continues.
	RunAll(ctx context.Context) (map[string]*SweepResult, error)
}

// SweepResult reports one maintenance pass
type SweepResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type sweepService struct {
	ServiceParams
	subscriptionService SubscriptionService
	paymentService      PaymentService
	invoiceService      InvoiceService
}

func NewSweepService(
	params ServiceParams,
	subscriptionService SubscriptionService,
	paymentService PaymentService,
	invoiceService InvoiceService,
) SweepService {
	return &sweepService{
		ServiceParams:       params,
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
		invoiceService:      invoiceService,
	}
}

func (s *sweepService) ProcessDueRenewals(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter: types.QueryFilter{Limit: types.FilterMaxLimit},
		Statuses:    []types.SubscriptionStatus{types.SubscriptionStatusActive},
		RenewBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, sub := range subs {
		if _, err := s.subscriptionService.RenewSubscription(ctx, sub.ID); err != nil {
			s.Logger.Errorw("renewal failed",
				"subscription_id", sub.ID, "error", err)
			if markErr := s.subscriptionService.MarkPastDue(ctx, sub.ID, err.Error()); markErr != nil {
				s.Logger.Errorw("failed to mark subscription past due",
					"subscription_id", sub.ID, "error", markErr)
			}
			result.Failed++
			continue
		}
		result.Processed++
	}

	s.Logger.Infow("renewal sweep finished",
		"processed", result.Processed, "failed", result.Failed)
	return result, nil
}

func (s *sweepService) ProcessExpiredTrials(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter:      types.QueryFilter{Limit: types.FilterMaxLimit},
		Statuses:         []types.SubscriptionStatus{types.SubscriptionStatusTrialing},
		TrialEndedBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, sub := range subs {
		sub.SubscriptionStatus = types.SubscriptionStatusIncomplete
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("failed to expire trial",
				"subscription_id", sub.ID, "error", err)
			result.Failed++
			continue
		}
		s.Logger.Infow("trial expired", "subscription_id", sub.ID)
		result.Processed++
	}

	s.Logger.Infow("trial sweep finished",
		"processed", result.Processed, "failed", result.Failed)
	return result, nil
}

func (s *sweepService) ProcessExpiredSubscriptions(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	autoRenew := false
	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter: types.QueryFilter{Limit: types.FilterMaxLimit},
		Statuses:    []types.SubscriptionStatus{types.SubscriptionStatusActive},
		AutoRenew:   &autoRenew,
		EndedBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, sub := range subs {
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		if sub.CancelledAt == nil {
			cancelledAt := now
			sub.CancelledAt = &cancelledAt
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("failed to cancel expired subscription",
				"subscription_id", sub.ID, "error", err)
			result.Failed++
			continue
		}
		s.Logger.Infow("subscription expired", "subscription_id", sub.ID)
		result.Processed++
	}

	s.Logger.Infow("expiry sweep finished",
		"processed", result.Processed, "failed", result.Failed)
	return result, nil
}

func (s *sweepService) ProcessStalePayments(ctx context.Context) (*SweepResult, error) {
	processed, err := s.paymentService.ProcessStalePayments(ctx)
	if err != nil {
		return nil, err
	}
	return &SweepResult{Processed: processed}, nil
}

func (s *sweepService) ProcessOverdueInvoices(ctx context.Context) (*SweepResult, error) {
	processed, err := s.invoiceService.ProcessOverdueInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return &SweepResult{Processed: processed}, nil
}

func (s *sweepService) RunAll(ctx context.Context) (map[string]*SweepResult, error) {
	passes := []struct {
		name string
		run  func(context.Context) (*SweepResult, error)
	}{
		{"expired_trials", s.ProcessExpiredTrials},
		{"due_renewals", s.ProcessDueRenewals},
		{"expired_subscriptions", s.ProcessExpiredSubscriptions},
		{"stale_payments", s.ProcessStalePayments},
		{"overdue_invoices", s.ProcessOverdueInvoices},
	}

	results := make(map[string]*SweepResult, len(passes))
	for _, pass := range passes {
		result, err := pass.run(ctx)
		if err != nil {
			s.Logger.Errorw("sweep failed", "sweep", pass.name, "error", err)
			results[pass.name] = &SweepResult{Failed: 1}
			continue
		}
		results[pass.name] = result
	}
	return results, nil
}
