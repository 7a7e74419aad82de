package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/types"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
)

// PaymentService orchestrates charges through the configured gateways.
// Completion paths are idempotent on the gateway order id, so callback
// verification and webhooks can race without double-processing.
type PaymentService interface {
	InitiatePayment(ctx context.Context, req *dto.InitiatePaymentRequest) (*dto.PaymentResponse, error)
	CompletePayment(ctx context.Context, req *dto.CompletePaymentRequest) (*dto.PaymentResponse, error)
	HandleWebhook(ctx context.Context, gatewayType types.PaymentGatewayType, body []byte, headers map[string]string) error
	RefundPayment(ctx context.Context, id string, req *dto.RefundPaymentRequest) (*dto.PaymentResponse, error)

	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
	GetRevenue(ctx context.Context, tenantID string, start, end time.Time) (*dto.RevenueResponse, error)

	SavePaymentMethod(ctx context.Context, req *dto.SavePaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	GetPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error)
	ListPaymentMethods(ctx context.Context, tenantID string) ([]*dto.PaymentMethodResponse, error)
	SetDefaultPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error)
	DeletePaymentMethod(ctx context.Context, id string) error

	// ProcessStalePayments cancels PENDING payments older than the
	// configured timeout and returns how many were cancelled.
	ProcessStalePayments(ctx context.Context) (int, error)
}

type paymentService struct {
	ServiceParams
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
}

func NewPaymentService(
	params ServiceParams,
	subscriptionService SubscriptionService,
	invoiceService InvoiceService,
) PaymentService {
	return &paymentService{
		ServiceParams:       params,
		subscriptionService: subscriptionService,
		invoiceService:      invoiceService,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, req *dto.InitiatePaymentRequest) (*dto.PaymentResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("Canceled subscriptions cannot be charged").
			Mark(ierr.ErrInvalidOperation)
	}
	if !sub.Amount.IsPositive() {
		return nil, ierr.NewError("nothing to charge").
			WithHint("The subscription amount is zero").
			Mark(ierr.ErrInvalidOperation)
	}

	gw, err := s.GatewayRegistry.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	reference := types.GenerateGatewayOrderReference()
	order, err := gw.CreateOrder(ctx, &gateway.OrderRequest{
		Reference:   reference,
		Amount:      sub.Amount,
		Currency:    sub.Currency,
		CustomerID:  sub.TenantID,
		RedirectURL: req.RedirectURL,
		CallbackURL: req.CallbackURL,
		Notes: types.Metadata{
			"subscription_id": sub.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = sub.TenantID

	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Gateway:        req.Gateway,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         sub.Amount,
		RefundedAmount: decimal.Zero,
		Currency:       sub.Currency,
		PaymentStatus:  types.PaymentStatusPending,
		Metadata: req.Metadata.Merge(types.Metadata{
			"gateway_reference": reference,
		}),
		BaseModel: base,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("initiated payment",
		"payment_id", p.ID,
		"subscription_id", sub.ID,
		"gateway", p.Gateway,
		"gateway_order_id", p.GatewayOrderID,
		"amount", p.Amount)

	resp := dto.NewPaymentResponse(p)
	resp.CheckoutURL = order.CheckoutURL
	return resp, nil
}

// CompletePayment settles a payment from the client callback.
// Verification runs before the settlement transaction opens: a failed
// verification must leave a committed FAILED row behind, which a write
// inside the aborted settlement transaction could not.
func (s *paymentService) CompletePayment(ctx context.Context, req *dto.CompletePaymentRequest) (*dto.PaymentResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	p, err := s.PaymentRepo.GetByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus == types.PaymentStatusCompleted {
		return dto.NewPaymentResponse(p), nil
	}
	if p.PaymentStatus.IsTerminal() {
		return nil, ierr.NewError("payment already finalized").
			WithHint("The payment is no longer pending").
			WithReportableDetails(map[string]any{
				"payment_id":     p.ID,
				"payment_status": p.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	gw, err := s.GatewayRegistry.Get(p.Gateway)
	if err != nil {
		return nil, err
	}
	verification, err := gw.VerifyPayment(ctx, &gateway.VerifyRequest{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		return nil, err
	}

	if !verification.Verified {
		reason := verification.FailureReason
		if reason == "" {
			reason = "payment verification failed"
		}
		if ferr := s.recordFailure(ctx, p.ID, reason); ferr != nil {
			s.Logger.Errorw("failed to record payment failure",
				"payment_id", p.ID, "error", ferr)
		}
		return nil, ierr.NewError("payment verification failed").
			WithHint("The payment could not be verified with the gateway").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
				"reason":     reason,
			}).
			Mark(ierr.ErrSignatureMismatch)
	}

	paymentID := verification.GatewayPaymentID
	if paymentID == "" {
		paymentID = req.GatewayPaymentID
	}

	// The payment row is locked for the settlement so a concurrent
	// webhook for the same order observes the final state instead of
	// racing it.
	var result *payment.Payment
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.PaymentRepo.GetByGatewayOrderID(ctx, req.GatewayOrderID)
		if err != nil {
			return err
		}
		if locked.PaymentStatus == types.PaymentStatusCompleted {
			result = locked
			return nil
		}
		if locked.PaymentStatus.IsTerminal() {
			return ierr.NewError("payment already finalized").
				WithHint("The payment is no longer pending").
				WithReportableDetails(map[string]any{
					"payment_id":     locked.ID,
					"payment_status": locked.PaymentStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		if err := s.settlePayment(ctx, locked, paymentID); err != nil {
			return err
		}
		result = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(result), nil
}

// recordFailure writes the FAILED status in its own transaction so the
// record survives the error surfaced to the caller.
func (s *paymentService) recordFailure(ctx context.Context, paymentID, reason string) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.PaymentStatus.IsTerminal() {
			return nil
		}
		return s.failPayment(ctx, p, reason)
	})
}

// settlePayment marks the payment completed, activates the subscription
// and issues the invoice. Callers hold the row lock.
func (s *paymentService) settlePayment(ctx context.Context, p *payment.Payment, gatewayPaymentID string) error {
	now := time.Now().UTC()
	p.PaymentStatus = types.PaymentStatusCompleted
	p.GatewayPaymentID = &gatewayPaymentID
	p.CompletedAt = &now
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return err
	}

	if err := s.subscriptionService.ActivateSubscription(ctx, p.SubscriptionID); err != nil {
		return err
	}

	inv, err := s.invoiceService.CreateForPayment(ctx, p)
	if err != nil {
		return err
	}
	p.InvoiceID = &inv.ID
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return err
	}

	s.Logger.Infow("completed payment",
		"payment_id", p.ID,
		"gateway_payment_id", gatewayPaymentID,
		"invoice_id", inv.ID)
	return nil
}

func (s *paymentService) failPayment(ctx context.Context, p *payment.Payment, reason string) error {
	p.PaymentStatus = types.PaymentStatusFailed
	p.FailureReason = &reason
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return err
	}
	s.Logger.Warnw("payment failed", "payment_id", p.ID, "reason", reason)
	return nil
}

// HandleWebhook processes a provider notification. Unknown events and
// notifications for unknown orders are acknowledged without action so
// the provider stops retrying; only a bad signature is rejected.
func (s *paymentService) HandleWebhook(ctx context.Context, gatewayType types.PaymentGatewayType, body []byte, headers map[string]string) error {
	gw, err := s.GatewayRegistry.Get(gatewayType)
	if err != nil {
		return err
	}

	event, err := gw.ParseWebhook(ctx, body, headers)
	if err != nil {
		return err
	}

	switch event.EventType {
	case gateway.WebhookEventPaymentCaptured, gateway.WebhookEventOrderPaid:
		return s.completeFromWebhook(ctx, event)
	case gateway.WebhookEventPaymentFailed:
		return s.failFromWebhook(ctx, event)
	default:
		s.Logger.Debugw("ignoring webhook event",
			"gateway", gatewayType,
			"event_type", event.EventType)
		return nil
	}
}

func (s *paymentService) completeFromWebhook(ctx context.Context, event *gateway.WebhookEvent) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.GetByGatewayOrderID(ctx, event.GatewayOrderID)
		if err != nil {
			if ierr.IsNotFound(err) {
				s.Logger.Warnw("webhook for unknown order",
					"gateway", event.Gateway,
					"gateway_order_id", event.GatewayOrderID)
				return nil
			}
			return err
		}
		if p.PaymentStatus.IsTerminal() {
			return nil
		}
		return s.settlePayment(ctx, p, event.GatewayPaymentID)
	})
}

func (s *paymentService) failFromWebhook(ctx context.Context, event *gateway.WebhookEvent) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.GetByGatewayOrderID(ctx, event.GatewayOrderID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil
			}
			return err
		}
		if p.PaymentStatus.IsTerminal() {
			return nil
		}
		reason := event.FailureReason
		if reason == "" {
			reason = "payment failed at gateway"
		}
		return s.failPayment(ctx, p, reason)
	})
}

func (s *paymentService) RefundPayment(ctx context.Context, id string, req *dto.RefundPaymentRequest) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p.PaymentStatus {
	case types.PaymentStatusCompleted, types.PaymentStatusPartiallyRefunded:
	default:
		return nil, ierr.NewError("payment cannot be refunded").
			WithHint("Only completed payments can be refunded").
			WithReportableDetails(map[string]any{
				"payment_id":     p.ID,
				"payment_status": p.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if p.GatewayPaymentID == nil {
		return nil, ierr.NewError("payment has no gateway payment id").
			WithHint("The payment was never captured at the gateway").
			Mark(ierr.ErrInvalidOperation)
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = p.RemainingRefundable()
	}
	if amount.IsNegative() || amount.GreaterThan(p.RemainingRefundable()) {
		return nil, ierr.NewError("refund exceeds captured amount").
			WithHint("Refund amount exceeds the remaining refundable amount").
			WithReportableDetails(map[string]any{
				"requested": amount.String(),
				"remaining": p.RemainingRefundable().String(),
			}).
			Mark(ierr.ErrRefundExceedsCaptured)
	}

	gw, err := s.GatewayRegistry.Get(p.Gateway)
	if err != nil {
		return nil, err
	}
	refund, err := gw.RefundPayment(ctx, &gateway.RefundRequest{
		GatewayPaymentID: *p.GatewayPaymentID,
		Amount:           amount,
		Reason:           req.Reason,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.RefundedAmount = p.RefundedAmount.Add(amount)
	p.GatewayRefundID = &refund.GatewayRefundID
	p.RefundedAt = &now
	if req.Reason != "" {
		p.RefundReason = &req.Reason
	}
	if p.RefundedAmount.GreaterThanOrEqual(p.Amount) {
		p.PaymentStatus = types.PaymentStatusRefunded
	} else {
		p.PaymentStatus = types.PaymentStatusPartiallyRefunded
	}

	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("refunded payment",
		"payment_id", p.ID,
		"amount", amount,
		"gateway_refund_id", refund.GatewayRefundID,
		"payment_status", p.PaymentStatus)
	return dto.NewPaymentResponse(p), nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(p), nil
}

// GetPaymentByGatewayOrderID resolves a payment from the provider order
// reference, which is what checkout return URLs carry.
func (s *paymentService) GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(p), nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if filter == nil {
		filter = &types.PaymentFilter{}
	}

	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PaymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, dto.NewPaymentResponse(p))
	}

	return &dto.ListPaymentsResponse{
		Items: items,
		Pagination: types.PaginationResponse{
			Total:  total,
			Limit:  filter.GetLimit(),
			Offset: filter.GetOffset(),
		},
	}, nil
}

// GetRevenue sums completed payments for a tenant whose settlement
// time falls inside [start, end]. Refunded payments leave the
// COMPLETED status, so they drop out of the total.
func (s *paymentService) GetRevenue(ctx context.Context, tenantID string, start, end time.Time) (*dto.RevenueResponse, error) {
	if tenantID == "" {
		return nil, ierr.NewError("tenant id is required").
			WithHint("Tenant ID is required").
			Mark(ierr.ErrValidation)
	}
	if end.Before(start) {
		return nil, ierr.NewError("end date before start date").
			WithHint("The end date must not be before the start date").
			Mark(ierr.ErrValidation)
	}

	total, err := s.PaymentRepo.TotalRevenue(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return &dto.RevenueResponse{
		TenantID:     tenantID,
		StartDate:    start,
		EndDate:      end,
		TotalRevenue: total,
		Currency:     s.Config.Billing.Currency,
	}, nil
}

func (s *paymentService) SavePaymentMethod(ctx context.Context, req *dto.SavePaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = req.TenantID

	method := &payment.PaymentMethod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		TenantID:       req.TenantID,
		Type:           req.Type,
		Gateway:        req.Gateway,
		GatewayTokenID: req.GatewayTokenID,
		Last4:          req.Last4,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		IsDefault:      req.IsDefault,
		Metadata:       req.Metadata,
		BaseModel:      base,
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}

	if method.IsDefault {
		if err := s.clearDefaultMethod(ctx, req.TenantID); err != nil {
			return nil, err
		}
	}
	if err := s.PaymentRepo.CreateMethod(ctx, method); err != nil {
		return nil, err
	}

	s.Logger.Infow("saved payment method",
		"payment_method_id", method.ID,
		"tenant_id", method.TenantID,
		"type", method.Type)
	return dto.NewPaymentMethodResponse(method), nil
}

func (s *paymentService) GetPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error) {
	method, err := s.PaymentRepo.GetMethod(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentMethodResponse(method), nil
}

func (s *paymentService) ListPaymentMethods(ctx context.Context, tenantID string) ([]*dto.PaymentMethodResponse, error) {
	methods, err := s.PaymentRepo.ListMethods(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.PaymentMethodResponse, 0, len(methods))
	for _, m := range methods {
		items = append(items, dto.NewPaymentMethodResponse(m))
	}
	return items, nil
}

func (s *paymentService) SetDefaultPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error) {
	method, err := s.PaymentRepo.GetMethod(ctx, id)
	if err != nil {
		return nil, err
	}
	if method.IsDefault {
		return dto.NewPaymentMethodResponse(method), nil
	}

	if err := s.clearDefaultMethod(ctx, method.TenantID); err != nil {
		return nil, err
	}
	method.IsDefault = true
	method.UpdatedBy = types.GetUserID(ctx)
	if err := s.PaymentRepo.UpdateMethod(ctx, method); err != nil {
		return nil, err
	}
	return dto.NewPaymentMethodResponse(method), nil
}

func (s *paymentService) clearDefaultMethod(ctx context.Context, tenantID string) error {
	methods, err := s.PaymentRepo.ListMethods(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, m := range methods {
		if !m.IsDefault {
			continue
		}
		m.IsDefault = false
		if err := s.PaymentRepo.UpdateMethod(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *paymentService) DeletePaymentMethod(ctx context.Context, id string) error {
	return s.PaymentRepo.DeleteMethod(ctx, id)
}

func (s *paymentService) ProcessStalePayments(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.Config.Billing.StalePaymentTimeout)
	payments, err := s.PaymentRepo.List(ctx, &types.PaymentFilter{
		QueryFilter:   types.QueryFilter{Limit: types.FilterMaxLimit},
		Statuses:      []types.PaymentStatus{types.PaymentStatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, p := range payments {
		reason := "Payment timeout"
		p.PaymentStatus = types.PaymentStatusCancelled
		p.FailureReason = &reason
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			s.Logger.Errorw("failed to cancel stale payment",
				"payment_id", p.ID, "error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		s.Logger.Infow("cancelled stale payments", "count", processed)
	}
	return processed, nil
}
