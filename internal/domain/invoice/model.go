package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Invoice is the tax document generated for a completed payment.
// Amounts are immutable once the invoice is issued; corrections go
// through VOID and reissue.
type Invoice struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	// InvoiceNumber is sequential per calendar year, INV-<year>-<seq>
	InvoiceNumber  string  `json:"invoice_number"`
	SubscriptionID string  `json:"subscription_id"`
	PaymentID      *string `json:"payment_id,omitempty"`

	InvoiceStatus types.InvoiceStatus `json:"invoice_status"`

	Subtotal decimal.Decimal `json:"subtotal"`
	// TaxRatePercent is frozen at generation time
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`

	IssuedAt time.Time  `json:"issued_at"`
	DueAt    time.Time  `json:"due_at"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	VoidedAt *time.Time `json:"voided_at,omitempty"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	// BillTo fields are denormalized so the invoice stays stable when
	// tenant details change later
	BillToName    string `json:"bill_to_name,omitempty"`
	BillToAddress string `json:"bill_to_address,omitempty"`
	TaxRegNo      string `json:"tax_reg_no,omitempty"`

	LineItems []*LineItem    `json:"line_items,omitempty"`
	Metadata  types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

// LineItem is one row on an invoice
type LineItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`

	types.BaseModel
}

func (i *Invoice) Validate() error {
	if i.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant id is required").
			Mark(ierr.ErrValidation)
	}
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if i.Subtotal.IsNegative() {
		return ierr.NewError("invalid subtotal").
			WithHint("Subtotal must not be negative").
			Mark(ierr.ErrValidation)
	}
	if !i.Subtotal.Add(i.TaxAmount).Equal(i.Total) {
		return ierr.NewError("invoice total mismatch").
			WithHint("Total must equal subtotal plus tax").
			WithReportableDetails(map[string]any{
				"subtotal":   i.Subtotal.String(),
				"tax_amount": i.TaxAmount.String(),
				"total":      i.Total.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}
	return nil
}

func (li *LineItem) Validate() error {
	if li.Quantity < 1 {
		return ierr.NewError("invalid quantity").
			WithHint("Quantity must be at least 1").
			Mark(ierr.ErrValidation)
	}
	if li.Amount.IsNegative() {
		return ierr.NewError("invalid line item amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
