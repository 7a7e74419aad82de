package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	"github.com/twelvenexus/oneplan-billing/internal/testutil"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type SweepServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SweepService
	testData struct {
		plan *plan.Plan
	}
}

func TestSweepService(t *testing.T) {
	suite.Run(t, new(SweepServiceSuite))
}

func (s *SweepServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.params()
	subscriptionService := NewSubscriptionService(params)
	invoiceService := NewInvoiceService(params)
	paymentService := NewPaymentService(params, subscriptionService, invoiceService)
	s.service = NewSweepService(params, subscriptionService, paymentService, invoiceService)
	s.setupTestData()
}

func (s *SweepServiceSuite) params() ServiceParams {
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		DB:              s.GetDB(),
		GatewayRegistry: s.GetGatewayRegistry(),
		PlanRepo:        s.GetStores().PlanRepo,
		SubRepo:         s.GetStores().SubscriptionRepo,
		PaymentRepo:     s.GetStores().PaymentRepo,
		InvoiceRepo:     s.GetStores().InvoiceRepo,
	}
}

func (s *SweepServiceSuite) setupTestData() {
	s.testData.plan = &plan.Plan{
		ID:        "plan_test_sweep",
		Name:      "Basic",
		Code:      "basic",
		BasePrice: decimal.NewFromInt(300),
		Currency:  "INR",
		TrialDays: 7,
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), s.testData.plan))
}

func (s *SweepServiceSuite) newSubscription(id, tenantID string, status types.SubscriptionStatus) *subscription.Subscription {
	now := s.GetNow()
	return &subscription.Subscription{
		ID:                 id,
		TenantID:           tenantID,
		PlanID:             s.testData.plan.ID,
		SubscriptionStatus: status,
		BillingCycle:       types.BILLING_CYCLE_MONTHLY,
		Quantity:           1,
		Amount:             decimal.NewFromInt(300),
		Currency:           "INR",
		StartDate:          now.AddDate(0, -2, 0),
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		BillingAnchorDay:   now.Day(),
		AutoRenew:          true,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
}

func (s *SweepServiceSuite) TestProcessDueRenewals() {
	due := s.newSubscription("subs_due", "tenant_due", types.SubscriptionStatusActive)
	due.CurrentPeriodEnd = s.GetNow().Add(-time.Hour)
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), due))

	notDue := s.newSubscription("subs_not_due", "tenant_not_due", types.SubscriptionStatusActive)
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), notDue))

	result, err := s.service.ProcessDueRenewals(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(0, result.Failed)

	renewed, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), due.ID)
	s.NoError(err)
	s.True(renewed.CurrentPeriodEnd.After(s.GetNow()))

	untouched, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), notDue.ID)
	s.NoError(err)
	s.Equal(notDue.CurrentPeriodEnd, untouched.CurrentPeriodEnd)
}

func (s *SweepServiceSuite) TestProcessExpiredTrials() {
	trialing := s.newSubscription("subs_trial", "tenant_trial", types.SubscriptionStatusTrialing)
	trialEnd := s.GetNow().Add(-time.Hour)
	trialStart := trialEnd.AddDate(0, 0, -7)
	trialing.TrialStart = &trialStart
	trialing.TrialEnd = &trialEnd
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), trialing))

	stillTrialing := s.newSubscription("subs_trial_live", "tenant_trial_live", types.SubscriptionStatusTrialing)
	liveEnd := s.GetNow().AddDate(0, 0, 3)
	stillTrialing.TrialEnd = &liveEnd
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), stillTrialing))

	result, err := s.service.ProcessExpiredTrials(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)

	expired, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), trialing.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusIncomplete, expired.SubscriptionStatus)

	live, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), stillTrialing.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, live.SubscriptionStatus)
}

func (s *SweepServiceSuite) TestProcessExpiredSubscriptions() {
	ended := s.newSubscription("subs_ended", "tenant_ended", types.SubscriptionStatusActive)
	endDate := s.GetNow().Add(-time.Hour)
	ended.AutoRenew = false
	ended.EndDate = &endDate
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), ended))

	// Auto-renewing subscriptions are never expired by this sweep
	renewing := s.newSubscription("subs_renewing", "tenant_renewing", types.SubscriptionStatusActive)
	renewing.EndDate = &endDate
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), renewing))

	result, err := s.service.ProcessExpiredSubscriptions(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)

	canceled, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), ended.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, canceled.SubscriptionStatus)
	s.NotNil(canceled.CancelledAt)

	kept, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), renewing.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, kept.SubscriptionStatus)
}

func (s *SweepServiceSuite) TestRunAll() {
	expired := s.newSubscription("subs_runall_trial", "tenant_runall", types.SubscriptionStatusTrialing)
	trialEnd := s.GetNow().Add(-time.Hour)
	expired.TrialEnd = &trialEnd
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), expired))

	results, err := s.service.RunAll(s.GetContext())
	s.NoError(err)
	s.Len(results, 5)
	s.Equal(1, results["expired_trials"].Processed)
	s.Equal(0, results["due_renewals"].Processed)
	s.Equal(0, results["stale_payments"].Processed)
	s.Equal(0, results["overdue_invoices"].Processed)
}
