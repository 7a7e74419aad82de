package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

// Snapshot copies the stored subscriptions for transaction rollback
// emulation.
func (s *InMemorySubscriptionStore) Snapshot() any {
	snap := make(map[string]*subscription.Subscription)
	for id, sub := range s.InMemoryStore.Snapshot() {
		cp := *sub
		snap[id] = &cp
	}
	return snap
}

func (s *InMemorySubscriptionStore) Restore(snapshot any) {
	s.InMemoryStore.Restore(snapshot.(map[string]*subscription.Subscription))
}

func subscriptionFilterFn(ctx context.Context, s *subscription.Subscription, filter interface{}) bool {
	if s.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.SubscriptionFilter)
	if !ok || f == nil {
		return true
	}
	if f.TenantID != "" && s.TenantID != f.TenantID {
		return false
	}
	if f.PlanID != "" && s.PlanID != f.PlanID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, s.SubscriptionStatus) {
		return false
	}
	if f.RenewBefore != nil {
		if !s.AutoRenew || s.CurrentPeriodEnd.After(*f.RenewBefore) {
			return false
		}
	}
	if f.TrialEndedBefore != nil {
		if s.TrialEnd == nil || s.TrialEnd.After(*f.TrialEndedBefore) {
			return false
		}
	}
	if f.EndedBefore != nil {
		if s.EndDate == nil || s.EndDate.After(*f.EndedBefore) {
			return false
		}
	}
	if f.AutoRenew != nil && s.AutoRenew != *f.AutoRenew {
		return false
	}
	return true
}

func subscriptionSortFn(i, j *subscription.Subscription) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil || sub.ID == "" {
		return ierr.NewError("subscription ID cannot be empty").
			WithHint("Subscription ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	return s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Update(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sub.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, sub)
}

func (s *InMemorySubscriptionStore) GetActiveByTenant(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	subs, err := s.List(ctx, &types.SubscriptionFilter{
		TenantID: tenantID,
		Statuses: []types.SubscriptionStatus{
			types.SubscriptionStatusActive,
			types.SubscriptionStatusTrialing,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ierr.NewError("no active subscription for tenant").
			WithHint("No active subscription for tenant").
			Mark(ierr.ErrNotFound)
	}
	return subs[0], nil
}
