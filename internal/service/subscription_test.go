package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/testutil"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	testData struct {
		plan *plan.Plan
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(s.params())
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) params() ServiceParams {
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

func (s *SubscriptionServiceSuite) setupTestData() {
	s.testData.plan = &plan.Plan{
		ID:        "plan_test_sub",
		Name:      "Business",
		Code:      "business",
		BasePrice: decimal.NewFromInt(500),
		Currency:  "INR",
		BillingCyclePrices: map[types.BillingCycle]decimal.Decimal{
			types.BILLING_CYCLE_YEARLY: decimal.NewFromInt(5000),
		},
		Features: types.Metadata{
			"api_access": "enabled",
			"sso":        "false",
		},
		Limits: map[string]int64{
			"projects": 10,
		},
		TrialDays: 14,
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), s.testData.plan))
}

func (s *SubscriptionServiceSuite) createSubscription(tenantID string) *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:     tenantID,
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BILLING_CYCLE_MONTHLY,
		Quantity:     2,
	})
	s.NoError(err)
	return resp
}

func (s *SubscriptionServiceSuite) activate(id string) {
	s.NoError(s.service.ActivateSubscription(s.GetContext(), id))
}

func (s *SubscriptionServiceSuite) TestCreateSubscription() {
	resp := s.createSubscription("tenant_1")

	s.Equal(types.SubscriptionStatusIncomplete, resp.SubscriptionStatus)
	s.True(resp.Amount.Equal(decimal.NewFromInt(1000)))
	s.Equal("INR", resp.Currency)
	s.True(resp.AutoRenew)
	s.Equal(resp.StartDate.Day(), resp.BillingAnchorDay)
	s.True(resp.CurrentPeriodEnd.After(resp.CurrentPeriodStart))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionYearlyPrice() {
	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:     "tenant_yearly",
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BILLING_CYCLE_YEARLY,
		Quantity:     1,
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(5000)))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionRejectsSecondActive() {
	first := s.createSubscription("tenant_1")
	s.activate(first.ID)

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:     "tenant_1",
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BILLING_CYCLE_MONTHLY,
		Quantity:     1,
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionInactivePlan() {
	s.testData.plan.Active = false
	s.NoError(s.GetStores().PlanRepo.Update(s.GetContext(), s.testData.plan))

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:     "tenant_1",
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BILLING_CYCLE_MONTHLY,
		Quantity:     1,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestStartTrial() {
	resp, err := s.service.StartTrial(s.GetContext(), &dto.StartTrialRequest{
		TenantID: "tenant_trial",
		PlanID:   s.testData.plan.ID,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, resp.SubscriptionStatus)
	s.Equal(types.BILLING_CYCLE_MONTHLY, resp.BillingCycle)
	s.Equal(1, resp.Quantity)
	s.NotNil(resp.TrialEnd)
	s.Equal(*resp.TrialEnd, resp.CurrentPeriodEnd)
	s.WithinDuration(s.GetNow().AddDate(0, 0, 14), *resp.TrialEnd, time.Minute)
}

func (s *SubscriptionServiceSuite) TestStartTrialWithoutTrialDays() {
	s.testData.plan.TrialDays = 0
	s.NoError(s.GetStores().PlanRepo.Update(s.GetContext(), s.testData.plan))

	_, err := s.service.StartTrial(s.GetContext(), &dto.StartTrialRequest{
		TenantID: "tenant_trial",
		PlanID:   s.testData.plan.ID,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestUpdateSubscriptionReprices() {
	created := s.createSubscription("tenant_1")

	resp, err := s.service.UpdateSubscription(s.GetContext(), created.ID, &dto.UpdateSubscriptionRequest{
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BILLING_CYCLE_YEARLY,
		Quantity:     3,
	})
	s.NoError(err)
	s.Equal(types.BILLING_CYCLE_YEARLY, resp.BillingCycle)
	s.True(resp.Amount.Equal(decimal.NewFromInt(15000)))
	// The running period is untouched until the next renewal
	s.Equal(created.CurrentPeriodEnd, resp.CurrentPeriodEnd)
}

func (s *SubscriptionServiceSuite) TestPauseAndResume() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	paused, err := s.service.PauseSubscription(s.GetContext(), created.ID, &dto.PauseSubscriptionRequest{
		Reason: "payment dispute",
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, paused.SubscriptionStatus)
	s.NotNil(paused.PausedAt)
	s.Equal("payment dispute", paused.Metadata["pause_reason"])

	resumed, err := s.service.ResumeSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
	s.Nil(resumed.PausedAt)
}

func (s *SubscriptionServiceSuite) TestPauseRequiresActive() {
	created := s.createSubscription("tenant_1")

	_, err := s.service.PauseSubscription(s.GetContext(), created.ID, nil)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCancelImmediate() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{
		Reason:    "switching providers",
		Immediate: true,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, resp.SubscriptionStatus)
	s.NotNil(resp.EndDate)
	s.NotNil(resp.CancelledAt)
	s.Equal("switching providers", resp.CancelReason)
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEnd() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{
		Reason: "too expensive",
	})
	s.NoError(err)
	// Access continues until the period ends
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.False(resp.AutoRenew)
	s.NotNil(resp.EndDate)
	s.Equal(resp.CurrentPeriodEnd, *resp.EndDate)
}

func (s *SubscriptionServiceSuite) TestRenewAdvancesPeriod() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	before, err := s.service.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	// The in-memory store hands out the stored pointer, so capture the
	// pre-renew values before RenewSubscription mutates them in place.
	prevEnd := before.CurrentPeriodEnd
	anchor := before.BillingAnchorDay
	cycle := before.BillingCycle

	resp, err := s.service.RenewSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(prevEnd, resp.CurrentPeriodStart)
	s.Equal(
		types.NextBillingDate(prevEnd, anchor, cycle),
		resp.CurrentPeriodEnd,
	)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestRenewRequiresAutoRenew() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	_, err := s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{})
	s.NoError(err)

	_, err = s.service.RenewSubscription(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestMarkPastDue() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	s.NoError(s.service.MarkPastDue(s.GetContext(), created.ID, "charge declined"))

	resp, err := s.service.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, resp.SubscriptionStatus)
	s.Equal("charge declined", resp.Metadata["past_due_reason"])
}

func (s *SubscriptionServiceSuite) TestHasFeature() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	resp, err := s.service.HasFeature(s.GetContext(), "tenant_1", "api_access")
	s.NoError(err)
	s.True(resp.Enabled)

	resp, err = s.service.HasFeature(s.GetContext(), "tenant_1", "sso")
	s.NoError(err)
	s.False(resp.Enabled)

	resp, err = s.service.HasFeature(s.GetContext(), "tenant_1", "missing")
	s.NoError(err)
	s.False(resp.Enabled)

	// No subscription at all resolves to disabled, not an error
	resp, err = s.service.HasFeature(s.GetContext(), "tenant_none", "api_access")
	s.NoError(err)
	s.False(resp.Enabled)
}

func (s *SubscriptionServiceSuite) TestGetFeatureLimit() {
	created := s.createSubscription("tenant_1")
	s.activate(created.ID)

	resp, err := s.service.GetFeatureLimit(s.GetContext(), "tenant_1", "projects")
	s.NoError(err)
	// Limit scales with quantity
	s.Equal(int64(20), resp.Limit)

	// Boolean features carry no quota
	resp, err = s.service.GetFeatureLimit(s.GetContext(), "tenant_1", "api_access")
	s.NoError(err)
	s.Equal(int64(0), resp.Limit)

	resp, err = s.service.GetFeatureLimit(s.GetContext(), "tenant_none", "projects")
	s.NoError(err)
	s.Equal(int64(0), resp.Limit)
}
