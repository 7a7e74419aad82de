package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	mu      sync.RWMutex
	methods map[string]*payment.PaymentMethod
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
		methods:       make(map[string]*payment.PaymentMethod),
	}
}

func (s *InMemoryPaymentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.methods = make(map[string]*payment.PaymentMethod)
}

func paymentFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	if p.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}
	if f.TenantID != "" && p.TenantID != f.TenantID {
		return false
	}
	if f.SubscriptionID != "" && p.SubscriptionID != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, p.PaymentStatus) {
		return false
	}
	if f.CreatedBefore != nil && p.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func paymentSortFn(i, j *payment.Payment) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.ID == "" {
		return ierr.NewError("payment ID cannot be empty").
			WithHint("Payment ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.Status == types.StatusDeleted {
		return nil, ierr.NewError("payment not found").
			WithHint("Payment not found").
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPaymentStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	payments, _ := s.InMemoryStore.List(ctx, nil, paymentFilterFn, nil)
	for _, p := range payments {
		if p.GatewayOrderID == gatewayOrderID {
			return p, nil
		}
	}
	return nil, ierr.NewError("payment not found for gateway order").
		WithHint("Payment not found for gateway order").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn)
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) TotalRevenue(ctx context.Context, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	payments, _ := s.InMemoryStore.List(ctx, nil, paymentFilterFn, nil)
	total := decimal.Zero
	for _, p := range payments {
		if p.TenantID != tenantID || p.PaymentStatus != types.PaymentStatusCompleted {
			continue
		}
		if p.CompletedAt == nil || p.CompletedAt.Before(start) || p.CompletedAt.After(end) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total, nil
}

// Snapshot copies the store contents so an aborted transaction can be
// rolled back. Row structs are copied because services mutate them in
// place before calling Update.
func (s *InMemoryPaymentStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := paymentSnapshot{
		payments: make(map[string]*payment.Payment),
		methods:  make(map[string]*payment.PaymentMethod, len(s.methods)),
	}
	for id, p := range s.InMemoryStore.Snapshot() {
		cp := *p
		snap.payments[id] = &cp
	}
	for id, m := range s.methods {
		cp := *m
		snap.methods[id] = &cp
	}
	return snap
}

func (s *InMemoryPaymentStore) Restore(snapshot any) {
	snap := snapshot.(paymentSnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Restore(snap.payments)
	s.methods = snap.methods
}

type paymentSnapshot struct {
	payments map[string]*payment.Payment
	methods  map[string]*payment.PaymentMethod
}

func (s *InMemoryPaymentStore) CreateMethod(ctx context.Context, m *payment.PaymentMethod) error {
	if m == nil || m.ID == "" {
		return ierr.NewError("payment method ID cannot be empty").
			WithHint("Payment method ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.methods[m.ID]; exists {
		return ierr.NewError("payment method already exists").
			WithHint("Payment method already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.methods[m.ID] = m
	return nil
}

func (s *InMemoryPaymentStore) GetMethod(ctx context.Context, id string) (*payment.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, exists := s.methods[id]
	if !exists || m.Status == types.StatusDeleted {
		return nil, ierr.NewError("payment method not found").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}
	return m, nil
}

func (s *InMemoryPaymentStore) UpdateMethod(ctx context.Context, m *payment.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.methods[m.ID]; !exists {
		return ierr.NewError("payment method not found").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}
	s.methods[m.ID] = m
	return nil
}

func (s *InMemoryPaymentStore) DeleteMethod(ctx context.Context, id string) error {
	m, err := s.GetMethod(ctx, id)
	if err != nil {
		return err
	}
	m.Status = types.StatusDeleted
	return nil
}

func (s *InMemoryPaymentStore) ListMethods(ctx context.Context, tenantID string) ([]*payment.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	methods := make([]*payment.PaymentMethod, 0)
	for _, m := range s.methods {
		if m.Status != types.StatusDeleted && m.TenantID == tenantID {
			methods = append(methods, m)
		}
	}
	return methods, nil
}
