package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		anchorDay int
		cycle     BillingCycle
		want      time.Time
	}{
		{
			name:      "monthly mid month",
			start:     time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			anchorDay: 15,
			cycle:     BILLING_CYCLE_MONTHLY,
			want:      time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly clamps jan 31 to feb 28",
			start:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			anchorDay: 31,
			cycle:     BILLING_CYCLE_MONTHLY,
			want:      time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly clamps jan 31 to feb 29 in leap year",
			start:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			anchorDay: 31,
			cycle:     BILLING_CYCLE_MONTHLY,
			want:      time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "anchor day restores after short month",
			start:     time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			anchorDay: 31,
			cycle:     BILLING_CYCLE_MONTHLY,
			want:      time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "quarterly crosses year boundary",
			start:     time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
			anchorDay: 30,
			cycle:     BILLING_CYCLE_QUARTERLY,
			want:      time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "half yearly",
			start:     time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
			anchorDay: 31,
			cycle:     BILLING_CYCLE_HALF_YEARLY,
			want:      time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "yearly clamps feb 29 to feb 28",
			start:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			anchorDay: 29,
			cycle:     BILLING_CYCLE_YEARLY,
			want:      time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBillingDate(tt.start, tt.anchorDay, tt.cycle)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestBillingCycleValidate(t *testing.T) {
	assert.NoError(t, BILLING_CYCLE_MONTHLY.Validate())
	assert.NoError(t, BILLING_CYCLE_YEARLY.Validate())
	assert.Error(t, BillingCycle("WEEKLY").Validate())
	assert.Error(t, BillingCycle("").Validate())
}
