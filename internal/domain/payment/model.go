package payment

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Payment represents one charge attempt against a subscription.
// GatewayOrderID is the provider-side order identifier and is the
// correlation key for webhooks and verification callbacks.
type Payment struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	SubscriptionID string `json:"subscription_id"`
	// InvoiceID is set once an invoice has been generated for this payment
	InvoiceID *string `json:"invoice_id,omitempty"`

	Gateway          types.PaymentGatewayType `json:"gateway"`
	GatewayOrderID   string                   `json:"gateway_order_id"`
	GatewayPaymentID *string                  `json:"gateway_payment_id,omitempty"`
	GatewayRefundID  *string                  `json:"gateway_refund_id,omitempty"`

	Amount decimal.Decimal `json:"amount"`
	// RefundedAmount accumulates across partial refunds and never
	// exceeds Amount.
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	Currency       string          `json:"currency"`

	PaymentStatus     types.PaymentStatus     `json:"payment_status"`
	PaymentMethodType types.PaymentMethodType `json:"payment_method_type"`
	PaymentMethodID   *string                 `json:"payment_method_id,omitempty"`

	FailureReason *string        `json:"failure_reason,omitempty"`
	RefundReason  *string        `json:"refund_reason,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	RefundedAt    *time.Time     `json:"refunded_at,omitempty"`
	Metadata      types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

// RemainingRefundable is the amount still eligible for refund.
func (p *Payment) RemainingRefundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

func (p *Payment) Validate() error {
	if p.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant id is required").
			Mark(ierr.ErrValidation)
	}
	if p.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"amount": p.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := p.Gateway.Validate(); err != nil {
		return err
	}
	if err := p.PaymentStatus.Validate(); err != nil {
		return err
	}
	if p.PaymentMethodType != "" {
		if err := p.PaymentMethodType.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PaymentMethod is a stored instrument reference. Only the gateway
// token and display hints are kept, never raw card data.
type PaymentMethod struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Type    types.PaymentMethodType  `json:"type"`
	Gateway types.PaymentGatewayType `json:"gateway"`
	// GatewayTokenID is the provider's token for the instrument
	GatewayTokenID string `json:"gateway_token_id"`

	Last4       string `json:"last4,omitempty"`
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"`
	IsDefault   bool   `json:"is_default"`

	Metadata types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

func (m *PaymentMethod) Validate() error {
	if m.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant id is required").
			Mark(ierr.ErrValidation)
	}
	if m.GatewayTokenID == "" {
		return ierr.NewError("gateway token id is required").
			WithHint("Gateway token id is required").
			Mark(ierr.ErrValidation)
	}
	if err := m.Type.Validate(); err != nil {
		return err
	}
	return m.Gateway.Validate()
}
