package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type InitiatePaymentRequest struct {
	SubscriptionID string                   `json:"subscription_id" validate:"required"`
	Gateway        types.PaymentGatewayType `json:"gateway" validate:"required"`
	RedirectURL    string                   `json:"redirect_url,omitempty"`
	CallbackURL    string                   `json:"callback_url,omitempty"`
	Metadata       types.Metadata           `json:"metadata,omitempty"`
}

type CompletePaymentRequest struct {
	GatewayOrderID   string                   `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string                   `json:"gateway_payment_id" validate:"required"`
	Signature        string                   `json:"signature"`
	Gateway          types.PaymentGatewayType `json:"gateway" validate:"required"`
}

type RefundPaymentRequest struct {
	// Amount is optional; zero means a full refund of the remaining
	// captured amount
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type SavePaymentMethodRequest struct {
	TenantID       string                   `json:"tenant_id" validate:"required"`
	Type           types.PaymentMethodType  `json:"type" validate:"required"`
	Gateway        types.PaymentGatewayType `json:"gateway" validate:"required"`
	GatewayTokenID string                   `json:"gateway_token_id" validate:"required"`
	Last4          string                   `json:"last4,omitempty"`
	ExpiryMonth    int                      `json:"expiry_month,omitempty"`
	ExpiryYear     int                      `json:"expiry_year,omitempty"`
	IsDefault      bool                     `json:"is_default"`
	Metadata       types.Metadata           `json:"metadata,omitempty"`
}

type PaymentResponse struct {
	*payment.Payment
	// CheckoutURL is present right after initiation for redirect flows
	CheckoutURL string `json:"checkout_url,omitempty"`
}

func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{Payment: p}
}

type RevenueResponse struct {
	TenantID     string          `json:"tenant_id"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Currency     string          `json:"currency"`
}

type ListPaymentsResponse struct {
	Items      []*PaymentResponse       `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}

type PaymentMethodResponse struct {
	*payment.PaymentMethod
}

func NewPaymentMethodResponse(m *payment.PaymentMethod) *PaymentMethodResponse {
	return &PaymentMethodResponse{PaymentMethod: m}
}
