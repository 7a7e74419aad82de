package gateway

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// OrderRequest asks the provider to open an order for a charge.
// Reference is the merchant-side order id sent to the provider; some
// providers echo it back, others assign their own id.
type OrderRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	// CustomerID, RedirectURL and CallbackURL feed provider-specific
	// fields where the provider requires them
	CustomerID  string
	RedirectURL string
	CallbackURL string
	Notes       types.Metadata
}

// OrderResult is the provider's answer to CreateOrder
type OrderResult struct {
	// GatewayOrderID is the id webhooks and verifications correlate on
	GatewayOrderID string
	// CheckoutURL is set by redirect-based providers
	CheckoutURL string
	Raw         json.RawMessage
}

// VerifyRequest carries the client-side callback parameters to check
type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// VerifyResult reports whether the provider confirmed the charge
type VerifyResult struct {
	Verified         bool
	GatewayPaymentID string
	FailureReason    string
}

// RefundRequest asks the provider to return funds for a captured charge
type RefundRequest struct {
	GatewayPaymentID string
	Amount           decimal.Decimal
	Reason           string
}

// RefundResult is the provider's answer to RefundPayment
type RefundResult struct {
	GatewayRefundID string
	Raw             json.RawMessage
}

// WebhookEventType is the normalized event across providers
type WebhookEventType string

const (
	WebhookEventPaymentCaptured WebhookEventType = "PAYMENT_CAPTURED"
	WebhookEventPaymentFailed   WebhookEventType = "PAYMENT_FAILED"
	WebhookEventOrderPaid       WebhookEventType = "ORDER_PAID"
	WebhookEventUnknown         WebhookEventType = "UNKNOWN"
)

// WebhookEvent is a provider notification with its signature already
// verified and its payload normalized
type WebhookEvent struct {
	Gateway          types.PaymentGatewayType
	EventType        WebhookEventType
	GatewayOrderID   string
	GatewayPaymentID string
	FailureReason    string
	Raw              json.RawMessage
}

// Gateway is a payment provider adapter. Implementations verify
// signatures before parsing payloads and never log credentials.
type Gateway interface {
	Type() types.PaymentGatewayType

	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	VerifyPayment(ctx context.Context, req *VerifyRequest) (*VerifyResult, error)
	CapturePayment(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) error
	RefundPayment(ctx context.Context, req *RefundRequest) (*RefundResult, error)

	// ParseWebhook verifies the signature and normalizes the payload.
	// A signature mismatch returns ErrSignatureMismatch; any other
	// parse problem is reported against the payload.
	ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*WebhookEvent, error)
}

// Registry holds the configured provider adapters
type Registry struct {
	gateways map[types.PaymentGatewayType]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[types.PaymentGatewayType]Gateway, len(gateways)),
	}
	for _, g := range gateways {
		r.gateways[g.Type()] = g
	}
	return r
}

func (r *Registry) Get(gatewayType types.PaymentGatewayType) (Gateway, error) {
	if err := gatewayType.Validate(); err != nil {
		return nil, err
	}
	g, ok := r.gateways[gatewayType]
	if !ok {
		return nil, ierr.NewError("payment gateway not configured").
			WithHint("The requested payment gateway is not configured").
			WithReportableDetails(map[string]any{
				"gateway": gatewayType,
			}).
			Mark(ierr.ErrGatewayUnavailable)
	}
	return g, nil
}
