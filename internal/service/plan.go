package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
)

// PlanService manages the plan catalog and resolves prices
type PlanService interface {
	CreatePlan(ctx context.Context, req *dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	GetPlanByCode(ctx context.Context, code string) (*dto.PlanResponse, error)
	ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
	ListPopularPlans(ctx context.Context) (*dto.ListPlansResponse, error)
	UpdatePlan(ctx context.Context, id string, req *dto.UpdatePlanRequest) (*dto.PlanResponse, error)
	DeletePlan(ctx context.Context, id string) error
	ActivatePlan(ctx context.Context, id string) error
	DeactivatePlan(ctx context.Context, id string) error
	MarkPopular(ctx context.Context, id string, popular bool) error
	CalculatePrice(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error)
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) CreatePlan(ctx context.Context, req *dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	p := req.ToPlan(ctx)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.PlanRepo.GetByCode(ctx, p.Code); err == nil && existing != nil {
		return nil, ierr.NewError("plan code already in use").
			WithHint("A plan with this code already exists").
			WithReportableDetails(map[string]any{
				"code": p.Code,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	if err := s.PlanRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("created plan", "plan_id", p.ID, "code", p.Code)
	return dto.NewPlanResponse(p), nil
}

func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPlanResponse(p), nil
}

func (s *planService) GetPlanByCode(ctx context.Context, code string) (*dto.PlanResponse, error) {
	p, err := s.PlanRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return dto.NewPlanResponse(p), nil
}

func (s *planService) ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if filter == nil {
		filter = &types.PlanFilter{}
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PlanRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, dto.NewPlanResponse(p))
	}

	return &dto.ListPlansResponse{
		Items: items,
		Pagination: types.PaginationResponse{
			Total:  total,
			Limit:  filter.GetLimit(),
			Offset: filter.GetOffset(),
		},
	}, nil
}

// ListPopularPlans returns the active plans flagged for storefront
// highlighting, in catalog sort order.
func (s *planService) ListPopularPlans(ctx context.Context) (*dto.ListPlansResponse, error) {
	return s.ListPlans(ctx, &types.PlanFilter{
		ActiveOnly:  true,
		PopularOnly: true,
	})
}

func (s *planService) UpdatePlan(ctx context.Context, id string, req *dto.UpdatePlanRequest) (*dto.PlanResponse, error) {
	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	if req.BillingCyclePrices != nil {
		p.BillingCyclePrices = req.BillingCyclePrices
	}
	if req.Features != nil {
		p.Features = req.Features
	}
	if req.Limits != nil {
		p.Limits = req.Limits
	}
	if req.TrialDays != nil {
		p.TrialDays = *req.TrialDays
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.SortOrder != nil {
		p.SortOrder = *req.SortOrder
	}
	if req.Metadata != nil {
		p.Metadata = p.Metadata.Merge(req.Metadata)
	}
	p.UpdatedBy = types.GetUserID(ctx)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.PlanRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("updated plan", "plan_id", p.ID)
	return dto.NewPlanResponse(p), nil
}

func (s *planService) DeletePlan(ctx context.Context, id string) error {
	subs, err := s.SubRepo.Count(ctx, &types.SubscriptionFilter{
		PlanID: id,
		Statuses: []types.SubscriptionStatus{
			types.SubscriptionStatusActive,
			types.SubscriptionStatusTrialing,
			types.SubscriptionStatusPastDue,
		},
	})
	if err != nil {
		return err
	}
	if subs > 0 {
		return ierr.NewError("plan has active subscriptions").
			WithHint("Deactivate the plan instead; active subscriptions still reference it").
			WithReportableDetails(map[string]any{
				"active_subscriptions": subs,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return s.PlanRepo.Delete(ctx, id)
}

func (s *planService) ActivatePlan(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *planService) DeactivatePlan(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *planService) setActive(ctx context.Context, id string, active bool) error {
	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Active = active
	p.UpdatedBy = types.GetUserID(ctx)
	return s.PlanRepo.Update(ctx, p)
}

func (s *planService) MarkPopular(ctx context.Context, id string, popular bool) error {
	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Popular = popular
	p.UpdatedBy = types.GetUserID(ctx)
	if err := s.PlanRepo.Update(ctx, p); err != nil {
		return err
	}

	s.Logger.Infow("updated plan popularity", "plan_id", p.ID, "popular", popular)
	return nil
}

// CalculatePrice resolves the cycle price, falling back to the base
// price, and multiplies by quantity.
func (s *planService) CalculatePrice(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := req.BillingCycle.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	unit := p.PriceFor(req.BillingCycle)
	return &dto.CalculatePriceResponse{
		PlanID:       p.ID,
		BillingCycle: req.BillingCycle,
		Quantity:     req.Quantity,
		UnitPrice:    unit,
		Amount:       unit.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Currency:     p.Currency,
	}, nil
}

// resolveAmount is the internal price path shared with subscriptions
func resolveAmount(p *plan.Plan, cycle types.BillingCycle, quantity int) decimal.Decimal {
	return p.PriceFor(cycle).Mul(decimal.NewFromInt(int64(quantity)))
}
