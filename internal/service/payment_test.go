package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/testutil"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentService
	testData struct {
		plan         *plan.Plan
		subscription *subscription.Subscription
	}
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.params()
	subscriptionService := NewSubscriptionService(params)
	invoiceService := NewInvoiceService(params)
	s.service = NewPaymentService(params, subscriptionService, invoiceService)
	s.setupTestData()
}

func (s *PaymentServiceSuite) params() ServiceParams {
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

func (s *PaymentServiceSuite) setupTestData() {
	s.testData.plan = &plan.Plan{
		ID:        "plan_test_payment",
		Name:      "Starter",
		Code:      "starter",
		BasePrice: decimal.NewFromInt(500),
		Currency:  "INR",
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), s.testData.plan))

	now := s.GetNow()
	s.testData.subscription = &subscription.Subscription{
		ID:                 "subs_test_payment",
		TenantID:           "tenant_pay",
		PlanID:             s.testData.plan.ID,
		SubscriptionStatus: types.SubscriptionStatusIncomplete,
		BillingCycle:       types.BILLING_CYCLE_MONTHLY,
		Quantity:           1,
		Amount:             decimal.NewFromInt(500),
		Currency:           "INR",
		StartDate:          now,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   types.NextBillingDate(now, now.Day(), types.BILLING_CYCLE_MONTHLY),
		BillingAnchorDay:   now.Day(),
		AutoRenew:          true,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.testData.subscription.BaseModel.TenantID = "tenant_pay"
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), s.testData.subscription))
}

func (s *PaymentServiceSuite) initiatePayment() *dto.PaymentResponse {
	resp, err := s.service.InitiatePayment(s.GetContext(), &dto.InitiatePaymentRequest{
		SubscriptionID: s.testData.subscription.ID,
		Gateway:        types.PaymentGatewayTypeRazorpay,
	})
	s.NoError(err)
	return resp
}

func (s *PaymentServiceSuite) TestInitiatePayment() {
	resp := s.initiatePayment()

	s.Equal(types.PaymentStatusPending, resp.PaymentStatus)
	s.NotEmpty(resp.GatewayOrderID)
	s.True(resp.Amount.Equal(decimal.NewFromInt(500)))
	s.Equal("tenant_pay", resp.TenantID)
	s.NotEmpty(resp.Metadata["gateway_reference"])
}

func (s *PaymentServiceSuite) TestInitiatePaymentCanceledSubscription() {
	s.testData.subscription.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), s.testData.subscription))

	_, err := s.service.InitiatePayment(s.GetContext(), &dto.InitiatePaymentRequest{
		SubscriptionID: s.testData.subscription.ID,
		Gateway:        types.PaymentGatewayTypeRazorpay,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestCompletePayment() {
	initiated := s.initiatePayment()

	resp, err := s.service.CompletePayment(s.GetContext(), &dto.CompletePaymentRequest{
		GatewayOrderID:   initiated.GatewayOrderID,
		GatewayPaymentID: "pay_rzp_123",
		Signature:        "sig",
		Gateway:          types.PaymentGatewayTypeRazorpay,
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusCompleted, resp.PaymentStatus)
	s.NotNil(resp.CompletedAt)
	s.Equal("pay_rzp_123", *resp.GatewayPaymentID)

	// Subscription activates on settlement
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), s.testData.subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)

	// And the invoice is issued as paid
	s.NotNil(resp.InvoiceID)
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), *resp.InvoiceID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.Subtotal.Equal(resp.Amount))
}

func (s *PaymentServiceSuite) TestCompletePaymentIdempotent() {
	initiated := s.initiatePayment()

	req := &dto.CompletePaymentRequest{
		GatewayOrderID:   initiated.GatewayOrderID,
		GatewayPaymentID: "pay_rzp_123",
		Signature:        "sig",
		Gateway:          types.PaymentGatewayTypeRazorpay,
	}
	first, err := s.service.CompletePayment(s.GetContext(), req)
	s.NoError(err)
	second, err := s.service.CompletePayment(s.GetContext(), req)
	s.NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(*first.InvoiceID, *second.InvoiceID)

	// Only one invoice exists for the payment
	count, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), &types.InvoiceFilter{
		SubscriptionID: s.testData.subscription.ID,
	})
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PaymentServiceSuite) TestCompletePaymentVerificationFailure() {
	initiated := s.initiatePayment()

	s.GetMockGateway(types.PaymentGatewayTypeRazorpay).VerifyPaymentFn =
		func(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error) {
			return &gateway.VerifyResult{Verified: false, FailureReason: "signature mismatch"}, nil
		}

	_, err := s.service.CompletePayment(s.GetContext(), &dto.CompletePaymentRequest{
		GatewayOrderID:   initiated.GatewayOrderID,
		GatewayPaymentID: "pay_rzp_123",
		Signature:        "bad",
		Gateway:          types.PaymentGatewayTypeRazorpay,
	})
	s.Error(err)
	s.True(ierr.IsSignatureMismatch(err))

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, p.PaymentStatus)
	s.Equal("signature mismatch", *p.FailureReason)
}

func (s *PaymentServiceSuite) TestHandleWebhookCaptured() {
	initiated := s.initiatePayment()

	s.GetMockGateway(types.PaymentGatewayTypeRazorpay).ParseWebhookFn =
		func(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
			return &gateway.WebhookEvent{
				Gateway:          types.PaymentGatewayTypeRazorpay,
				EventType:        gateway.WebhookEventPaymentCaptured,
				GatewayOrderID:   initiated.GatewayOrderID,
				GatewayPaymentID: "pay_rzp_hook",
			}, nil
		}

	err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeRazorpay, []byte(`{}`), nil)
	s.NoError(err)

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusCompleted, p.PaymentStatus)
	s.NotNil(p.InvoiceID)
}

func (s *PaymentServiceSuite) TestHandleWebhookFailed() {
	initiated := s.initiatePayment()

	s.GetMockGateway(types.PaymentGatewayTypeRazorpay).ParseWebhookFn =
		func(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
			return &gateway.WebhookEvent{
				Gateway:        types.PaymentGatewayTypeRazorpay,
				EventType:      gateway.WebhookEventPaymentFailed,
				GatewayOrderID: initiated.GatewayOrderID,
				FailureReason:  "card declined",
			}, nil
		}

	err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeRazorpay, []byte(`{}`), nil)
	s.NoError(err)

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, p.PaymentStatus)
	s.Equal("card declined", *p.FailureReason)
}

func (s *PaymentServiceSuite) TestHandleWebhookUnknownOrderAcked() {
	s.GetMockGateway(types.PaymentGatewayTypeRazorpay).ParseWebhookFn =
		func(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
			return &gateway.WebhookEvent{
				Gateway:        types.PaymentGatewayTypeRazorpay,
				EventType:      gateway.WebhookEventPaymentCaptured,
				GatewayOrderID: "order_never_seen",
			}, nil
		}

	// Unknown orders are acknowledged so the provider stops retrying
	err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeRazorpay, []byte(`{}`), nil)
	s.NoError(err)
}

func (s *PaymentServiceSuite) TestHandleWebhookBadSignature() {
	s.GetMockGateway(types.PaymentGatewayTypeRazorpay).ParseWebhookFn =
		func(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
			return nil, ierr.NewError("webhook signature mismatch").
				WithHint("Webhook signature verification failed").
				Mark(ierr.ErrSignatureMismatch)
		}

	err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeRazorpay, []byte(`{}`), nil)
	s.Error(err)
	s.True(ierr.IsSignatureMismatch(err))
}

func (s *PaymentServiceSuite) completePayment(initiated *dto.PaymentResponse) {
	_, err := s.service.CompletePayment(s.GetContext(), &dto.CompletePaymentRequest{
		GatewayOrderID:   initiated.GatewayOrderID,
		GatewayPaymentID: "pay_rzp_123",
		Signature:        "sig",
		Gateway:          types.PaymentGatewayTypeRazorpay,
	})
	s.NoError(err)
}

func (s *PaymentServiceSuite) TestRefundPaymentFull() {
	initiated := s.initiatePayment()
	s.completePayment(initiated)

	resp, err := s.service.RefundPayment(s.GetContext(), initiated.ID, &dto.RefundPaymentRequest{
		Reason: "customer request",
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusRefunded, resp.PaymentStatus)
	s.True(resp.RefundedAmount.Equal(resp.Amount))
	s.NotNil(resp.GatewayRefundID)
	s.NotNil(resp.RefundedAt)

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	s.Equal("customer request", *p.RefundReason)
}

func (s *PaymentServiceSuite) TestRefundPaymentPartial() {
	initiated := s.initiatePayment()
	s.completePayment(initiated)

	resp, err := s.service.RefundPayment(s.GetContext(), initiated.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromInt(200),
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPartiallyRefunded, resp.PaymentStatus)
	s.True(resp.RefundedAmount.Equal(decimal.NewFromInt(200)))

	// A second partial refund for the rest closes it out
	resp, err = s.service.RefundPayment(s.GetContext(), initiated.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromInt(300),
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusRefunded, resp.PaymentStatus)
}

func (s *PaymentServiceSuite) TestRefundExceedsCaptured() {
	initiated := s.initiatePayment()
	s.completePayment(initiated)

	_, err := s.service.RefundPayment(s.GetContext(), initiated.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromInt(600),
	})
	s.Error(err)
	s.True(ierr.IsRefundExceedsCaptured(err))
}

func (s *PaymentServiceSuite) TestRefundRequiresCompleted() {
	initiated := s.initiatePayment()

	_, err := s.service.RefundPayment(s.GetContext(), initiated.ID, &dto.RefundPaymentRequest{})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestProcessStalePayments() {
	initiated := s.initiatePayment()

	// Age the payment past the stale cutoff
	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	p.CreatedAt = s.GetNow().Add(-3 * s.GetConfig().Billing.StalePaymentTimeout)
	s.NoError(s.GetStores().PaymentRepo.Update(s.GetContext(), p))

	processed, err := s.service.ProcessStalePayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, processed)

	p, err = s.GetStores().PaymentRepo.Get(s.GetContext(), initiated.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusCancelled, p.PaymentStatus)
	s.Equal("Payment timeout", *p.FailureReason)
}

func (s *PaymentServiceSuite) TestGetRevenue() {
	initiated := s.initiatePayment()
	s.completePayment(initiated)

	// A second payment left pending must not count
	s.initiatePayment()

	start := s.GetNow().Add(-time.Hour)
	end := s.GetNow().Add(time.Hour)
	resp, err := s.service.GetRevenue(s.GetContext(), "tenant_pay", start, end)
	s.NoError(err)
	s.True(resp.TotalRevenue.Equal(decimal.NewFromInt(500)))
	s.Equal("INR", resp.Currency)
	s.Equal("tenant_pay", resp.TenantID)

	// Settlements outside the window are excluded
	resp, err = s.service.GetRevenue(s.GetContext(), "tenant_pay", start.Add(-48*time.Hour), start.Add(-24*time.Hour))
	s.NoError(err)
	s.True(resp.TotalRevenue.IsZero())

	// Other tenants are excluded
	resp, err = s.service.GetRevenue(s.GetContext(), "tenant_other", start, end)
	s.NoError(err)
	s.True(resp.TotalRevenue.IsZero())

	_, err = s.service.GetRevenue(s.GetContext(), "tenant_pay", end, start)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestPaymentMethods() {
	saved, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
		TenantID:       "tenant_pay",
		Type:           types.PaymentMethodTypeCard,
		Gateway:        types.PaymentGatewayTypeRazorpay,
		GatewayTokenID: "tok_1",
		Last4:          "4242",
		IsDefault:      true,
	})
	s.NoError(err)
	s.True(saved.IsDefault)

	second, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
		TenantID:       "tenant_pay",
		Type:           types.PaymentMethodTypeUPI,
		Gateway:        types.PaymentGatewayTypePhonePe,
		GatewayTokenID: "tok_2",
		IsDefault:      true,
	})
	s.NoError(err)
	s.True(second.IsDefault)

	// Saving a new default demotes the previous one
	first, err := s.service.GetPaymentMethod(s.GetContext(), saved.ID)
	s.NoError(err)
	s.False(first.IsDefault)

	methods, err := s.service.ListPaymentMethods(s.GetContext(), "tenant_pay")
	s.NoError(err)
	s.Len(methods, 2)

	promoted, err := s.service.SetDefaultPaymentMethod(s.GetContext(), saved.ID)
	s.NoError(err)
	s.True(promoted.IsDefault)
	demoted, err := s.service.GetPaymentMethod(s.GetContext(), second.ID)
	s.NoError(err)
	s.False(demoted.IsDefault)

	s.NoError(s.service.DeletePaymentMethod(s.GetContext(), second.ID))
	methods, err = s.service.ListPaymentMethods(s.GetContext(), "tenant_pay")
	s.NoError(err)
	s.Len(methods, 1)
}
