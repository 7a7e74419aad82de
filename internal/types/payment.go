package types

import (
	"github.com/samber/lo"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusRefunded,
		PaymentStatusPartiallyRefunded,
		PaymentStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Invalid payment status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the payment can no longer transition on
// its own. Refund transitions still apply to COMPLETED payments.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentGatewayType identifies the payment provider
type PaymentGatewayType string

const (
	PaymentGatewayTypeRazorpay PaymentGatewayType = "RAZORPAY"
	PaymentGatewayTypePhonePe  PaymentGatewayType = "PHONEPE"
)

func (g PaymentGatewayType) Validate() error {
	allowed := []PaymentGatewayType{
		PaymentGatewayTypeRazorpay,
		PaymentGatewayTypePhonePe,
	}
	if !lo.Contains(allowed, g) {
		return ierr.NewError("invalid payment gateway").
			WithHint("Payment gateway must be RAZORPAY or PHONEPE").
			WithReportableDetails(map[string]any{
				"gateway": g,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (g PaymentGatewayType) String() string {
	return string(g)
}

// PaymentMethodType is the instrument used to pay
type PaymentMethodType string

const (
	PaymentMethodTypeCard       PaymentMethodType = "CARD"
	PaymentMethodTypeUPI        PaymentMethodType = "UPI"
	PaymentMethodTypeNetBanking PaymentMethodType = "NETBANKING"
	PaymentMethodTypeWallet     PaymentMethodType = "WALLET"
)

func (m PaymentMethodType) Validate() error {
	allowed := []PaymentMethodType{
		PaymentMethodTypeCard,
		PaymentMethodTypeUPI,
		PaymentMethodTypeNetBanking,
		PaymentMethodTypeWallet,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method type").
			WithHint("Payment method type must be CARD, UPI, NETBANKING or WALLET").
			WithReportableDetails(map[string]any{
				"payment_method_type": m,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (m PaymentMethodType) String() string {
	return string(m)
}
