package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/testutil"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPlanService(s.params())
}

func (s *PlanServiceSuite) params() ServiceParams {
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

func (s *PlanServiceSuite) createPlanRequest() *dto.CreatePlanRequest {
	return &dto.CreatePlanRequest{
		Name:      "Pro",
		Code:      "pro",
		BasePrice: decimal.NewFromInt(999),
		Currency:  "INR",
		BillingCyclePrices: map[types.BillingCycle]decimal.Decimal{
			types.BILLING_CYCLE_YEARLY: decimal.NewFromInt(9990),
		},
		Features: types.Metadata{
			"api_access": "true",
		},
		Limits: map[string]int64{
			"seats": 5,
		},
		TrialDays: 14,
	}
}

func (s *PlanServiceSuite) TestCreatePlan() {
	resp, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)
	s.NotNil(resp)
	s.NotEmpty(resp.ID)
	s.Equal("pro", resp.Code)
	s.True(resp.Active)
	s.True(resp.BasePrice.Equal(decimal.NewFromInt(999)))
	s.Equal(int64(5), resp.Limits["seats"])
}

func (s *PlanServiceSuite) TestCreatePlanDuplicateCode() {
	_, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	_, err = s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *PlanServiceSuite) TestCreatePlanValidation() {
	req := s.createPlanRequest()
	req.Currency = "RUPEES"
	_, err := s.service.CreatePlan(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestGetPlanByCode() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	resp, err := s.service.GetPlanByCode(s.GetContext(), "pro")
	s.NoError(err)
	s.Equal(created.ID, resp.ID)

	_, err = s.service.GetPlanByCode(s.GetContext(), "missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PlanServiceSuite) TestUpdatePlan() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	newName := "Pro Plus"
	newPrice := decimal.NewFromInt(1299)
	resp, err := s.service.UpdatePlan(s.GetContext(), created.ID, &dto.UpdatePlanRequest{
		Name:      &newName,
		BasePrice: &newPrice,
	})
	s.NoError(err)
	s.Equal("Pro Plus", resp.Name)
	s.True(resp.BasePrice.Equal(newPrice))
	s.Equal("pro", resp.Code)
}

func (s *PlanServiceSuite) TestDeletePlanWithActiveSubscription() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	sub := &subscription.Subscription{
		ID:                 "subs_test_delete",
		TenantID:           "tenant_1",
		PlanID:             created.ID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		BillingCycle:       types.BILLING_CYCLE_MONTHLY,
		Quantity:           1,
		Amount:             decimal.NewFromInt(999),
		Currency:           "INR",
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))

	err = s.service.DeletePlan(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	s.NoError(s.service.DeletePlan(s.GetContext(), created.ID))
	_, err = s.service.GetPlan(s.GetContext(), created.ID)
	s.Error(err)
}

func (s *PlanServiceSuite) TestDeactivatePlan() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	s.NoError(s.service.DeactivatePlan(s.GetContext(), created.ID))
	resp, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.False(resp.Active)

	s.NoError(s.service.ActivatePlan(s.GetContext(), created.ID))
	resp, err = s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.True(resp.Active)
}

func (s *PlanServiceSuite) TestCalculatePrice() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	// Cycle with an explicit price
	resp, err := s.service.CalculatePrice(s.GetContext(), &dto.CalculatePriceRequest{
		PlanID:       created.ID,
		BillingCycle: types.BILLING_CYCLE_YEARLY,
		Quantity:     2,
	})
	s.NoError(err)
	s.True(resp.UnitPrice.Equal(decimal.NewFromInt(9990)))
	s.True(resp.Amount.Equal(decimal.NewFromInt(19980)))

	// Cycle without one falls back to the base price
	resp, err = s.service.CalculatePrice(s.GetContext(), &dto.CalculatePriceRequest{
		PlanID:       created.ID,
		BillingCycle: types.BILLING_CYCLE_QUARTERLY,
		Quantity:     3,
	})
	s.NoError(err)
	s.True(resp.UnitPrice.Equal(decimal.NewFromInt(999)))
	s.True(resp.Amount.Equal(decimal.NewFromInt(2997)))
}

func (s *PlanServiceSuite) TestCalculatePriceInvalidCycle() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	_, err = s.service.CalculatePrice(s.GetContext(), &dto.CalculatePriceRequest{
		PlanID:       created.ID,
		BillingCycle: "WEEKLY",
		Quantity:     1,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestMarkPopular() {
	created, err := s.service.CreatePlan(s.GetContext(), s.createPlanRequest())
	s.NoError(err)

	s.NoError(s.service.MarkPopular(s.GetContext(), created.ID, true))

	got, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.True(got.Popular)

	s.NoError(s.service.MarkPopular(s.GetContext(), created.ID, false))
	got, err = s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.False(got.Popular)
}

func (s *PlanServiceSuite) TestListPopularPlans() {
	starter := s.createPlanRequest()
	starter.Name = "Starter"
	starter.Code = "starter"
	starter.SortOrder = 2
	created, err := s.service.CreatePlan(s.GetContext(), starter)
	s.NoError(err)
	s.NoError(s.service.MarkPopular(s.GetContext(), created.ID, true))

	pro := s.createPlanRequest()
	pro.SortOrder = 1
	pro.Popular = true
	proCreated, err := s.service.CreatePlan(s.GetContext(), pro)
	s.NoError(err)

	plain := s.createPlanRequest()
	plain.Name = "Basic"
	plain.Code = "basic"
	_, err = s.service.CreatePlan(s.GetContext(), plain)
	s.NoError(err)

	resp, err := s.service.ListPopularPlans(s.GetContext())
	s.NoError(err)
	s.Len(resp.Items, 2)
	// catalog order: lowest sort order first
	s.Equal(proCreated.ID, resp.Items[0].ID)
	s.Equal(created.ID, resp.Items[1].ID)
}
