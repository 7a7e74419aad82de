package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/testutil"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  InvoiceService
	testData struct {
		plan         *plan.Plan
		subscription *subscription.Subscription
		payment      *payment.Payment
	}
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(s.params())
	s.setupTestData()
}

func (s *InvoiceServiceSuite) params() ServiceParams {
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

func (s *InvoiceServiceSuite) setupTestData() {
	s.testData.plan = &plan.Plan{
		ID:        "plan_test_invoice",
		Name:      "Growth",
		Code:      "growth",
		BasePrice: decimal.NewFromInt(1000),
		Currency:  "INR",
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), s.testData.plan))

	now := s.GetNow()
	s.testData.subscription = &subscription.Subscription{
		ID:                 "subs_test_invoice",
		TenantID:           "tenant_inv",
		PlanID:             s.testData.plan.ID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		BillingCycle:       types.BILLING_CYCLE_MONTHLY,
		Quantity:           2,
		Amount:             decimal.NewFromInt(2000),
		Currency:           "INR",
		StartDate:          now,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   types.NextBillingDate(now, now.Day(), types.BILLING_CYCLE_MONTHLY),
		BillingAnchorDay:   now.Day(),
		AutoRenew:          true,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), s.testData.subscription))

	completedAt := now
	paymentID := "pay_test_invoice"
	s.testData.payment = &payment.Payment{
		ID:               paymentID,
		TenantID:         "tenant_inv",
		SubscriptionID:   s.testData.subscription.ID,
		Gateway:          types.PaymentGatewayTypeRazorpay,
		GatewayOrderID:   "order_test_invoice",
		GatewayPaymentID: &paymentID,
		Amount:           decimal.NewFromInt(2000),
		Currency:         "INR",
		PaymentStatus:    types.PaymentStatusCompleted,
		CompletedAt:      &completedAt,
		BaseModel:        types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), s.testData.payment))
}

func (s *InvoiceServiceSuite) TestCreateForPayment() {
	resp, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
	s.NotNil(resp.PaidAt)
	s.Equal(fmt.Sprintf("INV-%d-00001", s.GetNow().Year()), resp.InvoiceNumber)

	// 18% GST on 2000.00
	s.True(resp.Subtotal.Equal(decimal.NewFromInt(2000)))
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(360)))
	s.True(resp.Total.Equal(decimal.NewFromInt(2360)))

	s.Len(resp.LineItems, 1)
	li := resp.LineItems[0]
	s.Equal(2, li.Quantity)
	s.True(li.UnitPrice.Equal(decimal.NewFromInt(1000)))
	s.True(li.Amount.Equal(decimal.NewFromInt(2000)))
	s.Contains(li.Description, "Growth")
}

func (s *InvoiceServiceSuite) TestCreateForPaymentIdempotent() {
	first, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)
	second, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(first.InvoiceNumber, second.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestCreateForPaymentRequiresCompleted() {
	s.testData.payment.PaymentStatus = types.PaymentStatusPending
	_, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestSequentialNumbering() {
	first, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	other := *s.testData.payment
	other.ID = "pay_test_invoice_2"
	other.GatewayOrderID = "order_test_invoice_2"
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), &other))

	second, err := s.service.CreateForPayment(s.GetContext(), &other)
	s.NoError(err)

	year := s.GetNow().Year()
	s.Equal(fmt.Sprintf("INV-%d-00001", year), first.InvoiceNumber)
	s.Equal(fmt.Sprintf("INV-%d-00002", year), second.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestTaxRounding() {
	s.testData.payment.Amount = decimal.RequireFromString("999.99")
	resp, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	// 999.99 * 18% = 179.9982, rounded to 180.00
	s.True(resp.TaxAmount.Equal(decimal.RequireFromString("180.00")))
	s.True(resp.Total.Equal(decimal.RequireFromString("1179.99")))
}

func (s *InvoiceServiceSuite) TestGetByNumber() {
	created, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	resp, err := s.service.GetInvoiceByNumber(s.GetContext(), created.InvoiceNumber)
	s.NoError(err)
	s.Equal(created.ID, resp.ID)

	_, err = s.service.GetInvoiceByNumber(s.GetContext(), "INV-1999-00001")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestVoidInvoice() {
	created, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	resp, err := s.service.VoidInvoice(s.GetContext(), created.ID, &dto.VoidInvoiceRequest{
		Reason: "billing error",
	})
	s.NoError(err)
	s.Equal(types.InvoiceStatusVoid, resp.InvoiceStatus)
	s.NotNil(resp.VoidedAt)
	s.Equal("billing error", resp.Metadata["void_reason"])

	_, err = s.service.VoidInvoice(s.GetContext(), created.ID, &dto.VoidInvoiceRequest{
		Reason: "again",
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestMarkInvoicePaid() {
	created, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	inv.InvoiceStatus = types.InvoiceStatusIssued
	inv.PaidAt = nil
	s.NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), inv))

	paidAt := s.GetNow()
	resp, err := s.service.MarkInvoicePaid(s.GetContext(), created.ID, paidAt)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
	s.NotNil(resp.PaidAt)
}

func (s *InvoiceServiceSuite) TestProcessOverdueInvoices() {
	created, err := s.service.CreateForPayment(s.GetContext(), s.testData.payment)
	s.NoError(err)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	inv.InvoiceStatus = types.InvoiceStatusIssued
	inv.DueAt = s.GetNow().Add(-24 * time.Hour)
	s.NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), inv))

	processed, err := s.service.ProcessOverdueInvoices(s.GetContext())
	s.NoError(err)
	s.Equal(1, processed)

	inv, err = s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOverdue, inv.InvoiceStatus)

	// Already-overdue invoices are not reprocessed
	processed, err = s.service.ProcessOverdueInvoices(s.GetContext())
	s.NoError(err)
	s.Equal(0, processed)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceDraft() {
	resp, err := s.service.GenerateInvoice(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: s.testData.subscription.ID,
	})
	s.NoError(err)

	s.Equal(types.InvoiceStatusDraft, resp.InvoiceStatus)
	s.Nil(resp.PaymentID)
	s.Nil(resp.PaidAt)
	s.True(resp.IssuedAt.IsZero())
	s.True(resp.Subtotal.Equal(decimal.NewFromInt(2000)))
	s.True(resp.Total.Equal(decimal.NewFromInt(2360)))
	s.Equal("tenant_inv", resp.TenantID)
}

func (s *InvoiceServiceSuite) TestIssueInvoice() {
	draft, err := s.service.GenerateInvoice(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: s.testData.subscription.ID,
	})
	s.NoError(err)

	issued, err := s.service.IssueInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusIssued, issued.InvoiceStatus)
	s.False(issued.IssuedAt.IsZero())
	s.Equal(issued.IssuedAt.AddDate(0, 0, s.GetConfig().Billing.InvoiceDueDays), issued.DueAt)

	// issuing twice is rejected
	_, err = s.service.IssueInvoice(s.GetContext(), draft.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
