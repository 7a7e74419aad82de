package testutil

import (
	"context"

	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
	}
}

// Snapshot copies the stored plans for transaction rollback emulation.
func (s *InMemoryPlanStore) Snapshot() any {
	snap := make(map[string]*plan.Plan)
	for id, p := range s.InMemoryStore.Snapshot() {
		cp := *p
		snap[id] = &cp
	}
	return snap
}

func (s *InMemoryPlanStore) Restore(snapshot any) {
	s.InMemoryStore.Restore(snapshot.(map[string]*plan.Plan))
}

func planFilterFn(ctx context.Context, p *plan.Plan, filter interface{}) bool {
	if p.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.PlanFilter)
	if !ok || f == nil {
		return true
	}
	if f.ActiveOnly && !p.Active {
		return false
	}
	if f.PopularOnly && !p.Popular {
		return false
	}
	return true
}

func planSortFn(i, j *plan.Plan) bool {
	if i.SortOrder != j.SortOrder {
		return i.SortOrder < j.SortOrder
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPlanStore) Create(ctx context.Context, p *plan.Plan) error {
	if p == nil || p.ID == "" {
		return ierr.NewError("plan ID cannot be empty").
			WithHint("Plan ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.Status == types.StatusDeleted {
		return nil, ierr.NewError("plan not found").
			WithHint("Plan not found").
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	plans, _ := s.InMemoryStore.List(ctx, nil, planFilterFn, nil)
	for _, p := range plans {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, ierr.NewError("plan not found").
		WithHint("Plan not found").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPlanStore) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	return s.InMemoryStore.List(ctx, filter, planFilterFn, planSortFn)
}

func (s *InMemoryPlanStore) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, planFilterFn)
}

func (s *InMemoryPlanStore) Update(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, p)
}
