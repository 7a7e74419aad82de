package types

import "time"

const (
	FilterDefaultLimit = 50
	FilterMaxLimit     = 1000
)

// QueryFilter carries pagination common to all list operations
type QueryFilter struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit <= 0 {
		return FilterDefaultLimit
	}
	if f.Limit > FilterMaxLimit {
		return FilterMaxLimit
	}
	return f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset < 0 {
		return 0
	}
	return f.Offset
}

// PaginationResponse reports list totals alongside the applied window
type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PlanFilter filters plan list operations
type PlanFilter struct {
	QueryFilter
	ActiveOnly  bool `json:"active_only" form:"active_only"`
	PopularOnly bool `json:"popular_only" form:"popular_only"`
}

// SubscriptionFilter filters subscription list operations
type SubscriptionFilter struct {
	QueryFilter
	TenantID         string               `json:"tenant_id" form:"tenant_id"`
	PlanID           string               `json:"plan_id" form:"plan_id"`
	Statuses         []SubscriptionStatus `json:"statuses" form:"statuses"`
	RenewBefore      *time.Time           `json:"renew_before" form:"-"`
	TrialEndedBefore *time.Time           `json:"trial_ended_before" form:"-"`
	EndedBefore      *time.Time           `json:"ended_before" form:"-"`
	AutoRenew        *bool                `json:"auto_renew" form:"-"`
}

// PaymentFilter filters payment list operations
type PaymentFilter struct {
	QueryFilter
	TenantID       string          `json:"tenant_id" form:"tenant_id"`
	SubscriptionID string          `json:"subscription_id" form:"subscription_id"`
	Statuses       []PaymentStatus `json:"statuses" form:"statuses"`
	CreatedBefore  *time.Time      `json:"created_before" form:"-"`
}

// InvoiceFilter filters invoice list operations
type InvoiceFilter struct {
	QueryFilter
	TenantID       string          `json:"tenant_id" form:"tenant_id"`
	SubscriptionID string          `json:"subscription_id" form:"subscription_id"`
	Statuses       []InvoiceStatus `json:"statuses" form:"statuses"`
	DueBefore      *time.Time      `json:"due_before" form:"-"`
}
