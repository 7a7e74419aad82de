package types

import (
	"time"

	"github.com/samber/lo"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
)

// BillingCycle is the cadence a subscription renews on
type BillingCycle string

const (
	BILLING_CYCLE_MONTHLY     BillingCycle = "MONTHLY"
	BILLING_CYCLE_QUARTERLY   BillingCycle = "QUARTERLY"
	BILLING_CYCLE_HALF_YEARLY BillingCycle = "HALF_YEARLY"
	BILLING_CYCLE_YEARLY      BillingCycle = "YEARLY"
)

func (b BillingCycle) Validate() error {
	allowed := []BillingCycle{
		BILLING_CYCLE_MONTHLY,
		BILLING_CYCLE_QUARTERLY,
		BILLING_CYCLE_HALF_YEARLY,
		BILLING_CYCLE_YEARLY,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Billing cycle must be MONTHLY, QUARTERLY, HALF_YEARLY or YEARLY").
			WithReportableDetails(map[string]any{
				"billing_cycle": b,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (b BillingCycle) String() string {
	return string(b)
}

// Months returns the number of calendar months one period spans.
// YEARLY is advanced as a calendar year rather than 12 discrete months.
func (b BillingCycle) Months() int {
	switch b {
	case BILLING_CYCLE_QUARTERLY:
		return 3
	case BILLING_CYCLE_HALF_YEARLY:
		return 6
	case BILLING_CYCLE_YEARLY:
		return 12
	default:
		return 1
	}
}

// NextBillingDate advances start by one billing period, clamping the
// day-of-month when the target month is shorter. Jan 31 + MONTHLY is
// Feb 28 (29 in leap years), and the clamped anchor does not drift:
// callers pass the original anchor day, not the clamped result.
func NextBillingDate(start time.Time, anchorDay int, cycle BillingCycle) time.Time {
	if cycle == BILLING_CYCLE_YEARLY {
		return addClampedDate(start, 1, 0, anchorDay)
	}
	return addClampedDate(start, 0, cycle.Months(), anchorDay)
}

func addClampedDate(t time.Time, years, months, day int) time.Time {
	year, month, _ := t.Date()

	year += years
	totalMonths := int(month-1) + months
	year += totalMonths / 12
	month = time.Month(totalMonths%12) + 1

	lastDay := lastDayOfMonth(year, month)
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
