package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// MockGateway is a configurable gateway adapter for tests. The default
// behavior succeeds; tests override the function fields to simulate
// failures.
type MockGateway struct {
	GatewayType types.PaymentGatewayType

	CreateOrderFn   func(ctx context.Context, req *gateway.OrderRequest) (*gateway.OrderResult, error)
	VerifyPaymentFn func(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error)
	RefundFn        func(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error)
	ParseWebhookFn  func(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error)

	orderCounter  atomic.Int64
	refundCounter atomic.Int64
}

func NewMockGateway(gatewayType types.PaymentGatewayType) *MockGateway {
	return &MockGateway{GatewayType: gatewayType}
}

func (m *MockGateway) Type() types.PaymentGatewayType {
	return m.GatewayType
}

func (m *MockGateway) CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.OrderResult, error) {
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req)
	}
	n := m.orderCounter.Add(1)
	return &gateway.OrderResult{
		GatewayOrderID: fmt.Sprintf("mock_order_%d", n),
	}, nil
}

func (m *MockGateway) VerifyPayment(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	if m.VerifyPaymentFn != nil {
		return m.VerifyPaymentFn(ctx, req)
	}
	return &gateway.VerifyResult{
		Verified:         true,
		GatewayPaymentID: req.GatewayPaymentID,
	}, nil
}

func (m *MockGateway) CapturePayment(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) error {
	return nil
}

func (m *MockGateway) RefundPayment(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req)
	}
	n := m.refundCounter.Add(1)
	return &gateway.RefundResult{
		GatewayRefundID: fmt.Sprintf("mock_refund_%d", n),
	}, nil
}

func (m *MockGateway) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
	if m.ParseWebhookFn != nil {
		return m.ParseWebhookFn(ctx, body, headers)
	}
	return nil, ierr.NewError("no webhook handler configured").
		WithHint("Mock gateway has no webhook handler").
		Mark(ierr.ErrSystem)
}
