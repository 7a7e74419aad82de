package dto

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type CreatePlanRequest struct {
	Name               string                                 `json:"name" validate:"required"`
	Description        string                                 `json:"description"`
	Code               string                                 `json:"code" validate:"required"`
	BasePrice          decimal.Decimal                        `json:"base_price"`
	Currency           string                                 `json:"currency" validate:"required,len=3"`
	BillingCyclePrices map[types.BillingCycle]decimal.Decimal `json:"billing_cycle_prices,omitempty"`
	Features           types.Metadata                         `json:"features,omitempty"`
	Limits             map[string]int64                       `json:"limits,omitempty"`
	TrialDays          int                                    `json:"trial_days"`
	Popular            bool                                   `json:"popular"`
	SortOrder          int                                    `json:"sort_order"`
	Metadata           types.Metadata                         `json:"metadata,omitempty"`
}

func (r *CreatePlanRequest) ToPlan(ctx context.Context) *plan.Plan {
	return &plan.Plan{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:               r.Name,
		Description:        r.Description,
		Code:               r.Code,
		BasePrice:          r.BasePrice,
		Currency:           r.Currency,
		BillingCyclePrices: r.BillingCyclePrices,
		Features:           r.Features,
		Limits:             r.Limits,
		TrialDays:          r.TrialDays,
		Active:             true,
		Popular:            r.Popular,
		SortOrder:          r.SortOrder,
		Metadata:           r.Metadata,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

type UpdatePlanRequest struct {
	Name               *string                                `json:"name,omitempty"`
	Description        *string                                `json:"description,omitempty"`
	BasePrice          *decimal.Decimal                       `json:"base_price,omitempty"`
	BillingCyclePrices map[types.BillingCycle]decimal.Decimal `json:"billing_cycle_prices,omitempty"`
	Features           types.Metadata                         `json:"features,omitempty"`
	Limits             map[string]int64                       `json:"limits,omitempty"`
	TrialDays          *int                                   `json:"trial_days,omitempty"`
	Active             *bool                                  `json:"active,omitempty"`
	SortOrder          *int                                   `json:"sort_order,omitempty"`
	Metadata           types.Metadata                         `json:"metadata,omitempty"`
}

type PlanResponse struct {
	*plan.Plan
}

func NewPlanResponse(p *plan.Plan) *PlanResponse {
	return &PlanResponse{Plan: p}
}

type ListPlansResponse struct {
	Items      []*PlanResponse          `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}

type MarkPopularRequest struct {
	Popular bool `json:"popular"`
}

type CalculatePriceRequest struct {
	PlanID       string             `json:"plan_id" validate:"required"`
	BillingCycle types.BillingCycle `json:"billing_cycle" validate:"required"`
	Quantity     int                `json:"quantity" validate:"required,min=1"`
}

type CalculatePriceResponse struct {
	PlanID       string             `json:"plan_id"`
	BillingCycle types.BillingCycle `json:"billing_cycle"`
	Quantity     int                `json:"quantity"`
	UnitPrice    decimal.Decimal    `json:"unit_price"`
	Amount       decimal.Decimal    `json:"amount"`
	Currency     string             `json:"currency"`
}
