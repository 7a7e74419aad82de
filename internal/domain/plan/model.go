package plan

import (
	"github.com/shopspring/decimal"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Plan is a sellable catalog entry. Prices are stored per billing
// cycle; cycles missing from BillingCyclePrices fall back to BasePrice.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Code is a stable, human-assigned identifier unique per tenant
	Code      string          `json:"code"`
	BasePrice decimal.Decimal `json:"base_price"`
	Currency  string          `json:"currency"`
	// BillingCyclePrices overrides BasePrice for specific cycles
	BillingCyclePrices map[types.BillingCycle]decimal.Decimal `json:"billing_cycle_prices,omitempty"`
	// Features maps feature keys to string values; "true"/"enabled"
	// grant access.
	Features types.Metadata `json:"features,omitempty"`
	// Limits maps feature keys to per-unit quotas
	Limits    map[string]int64 `json:"limits,omitempty"`
	TrialDays int              `json:"trial_days"`
	Active    bool           `json:"active"`
	// Popular flags the plan for storefront highlighting
	Popular bool `json:"popular"`
	// SortOrder controls catalog display position, ascending
	SortOrder int            `json:"sort_order"`
	Metadata  types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

// PriceFor resolves the per-unit price for a billing cycle.
func (p *Plan) PriceFor(cycle types.BillingCycle) decimal.Decimal {
	if price, ok := p.BillingCyclePrices[cycle]; ok {
		return price
	}
	return p.BasePrice
}

func (p *Plan) Validate() error {
	if p.Name == "" {
		return ierr.NewError("plan name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	if p.Code == "" {
		return ierr.NewError("plan code is required").
			WithHint("Plan code is required").
			Mark(ierr.ErrValidation)
	}
	if p.BasePrice.IsNegative() {
		return ierr.NewError("invalid base price").
			WithHint("Base price must not be negative").
			WithReportableDetails(map[string]any{
				"base_price": p.BasePrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if len(p.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three-letter ISO code").
			WithReportableDetails(map[string]any{
				"currency": p.Currency,
			}).
			Mark(ierr.ErrValidation)
	}
	if p.TrialDays < 0 {
		return ierr.NewError("invalid trial days").
			WithHint("Trial days must not be negative").
			Mark(ierr.ErrValidation)
	}
	for cycle, price := range p.BillingCyclePrices {
		if err := cycle.Validate(); err != nil {
			return err
		}
		if price.IsNegative() {
			return ierr.NewError("invalid billing cycle price").
				WithHint("Billing cycle prices must not be negative").
				WithReportableDetails(map[string]any{
					"billing_cycle": cycle,
					"price":         price.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}
