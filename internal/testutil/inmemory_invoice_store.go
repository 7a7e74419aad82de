package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	mu        sync.Mutex
	sequences map[int]int64
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		sequences:     make(map[int]int64),
	}
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.sequences = make(map[int]int64)
}

// Snapshot copies invoices, their line item slices and the number
// sequences for transaction rollback emulation.
func (s *InMemoryInvoiceStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := invoiceSnapshot{
		invoices:  make(map[string]*invoice.Invoice),
		sequences: make(map[int]int64, len(s.sequences)),
	}
	for id, inv := range s.InMemoryStore.Snapshot() {
		cp := *inv
		cp.LineItems = append([]*invoice.LineItem(nil), inv.LineItems...)
		snap.invoices[id] = &cp
	}
	for year, v := range s.sequences {
		snap.sequences[year] = v
	}
	return snap
}

func (s *InMemoryInvoiceStore) Restore(snapshot any) {
	snap := snapshot.(invoiceSnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Restore(snap.invoices)
	s.sequences = snap.sequences
}

type invoiceSnapshot struct {
	invoices  map[string]*invoice.Invoice
	sequences map[int]int64
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if inv.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}
	if f.TenantID != "" && inv.TenantID != f.TenantID {
		return false
	}
	if f.SubscriptionID != "" && inv.SubscriptionID != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, inv.InvoiceStatus) {
		return false
	}
	if f.DueBefore != nil && inv.DueAt.After(*f.DueBefore) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil || inv.ID == "" {
		return ierr.NewError("invoice ID cannot be empty").
			WithHint("Invoice ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.Status == types.StatusDeleted {
		return nil, ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetByNumber(ctx context.Context, invoiceNumber string) (*invoice.Invoice, error) {
	invoices, _ := s.InMemoryStore.List(ctx, nil, invoiceFilterFn, nil)
	for _, inv := range invoices {
		if inv.InvoiceNumber == invoiceNumber {
			return inv, nil
		}
	}
	return nil, ierr.NewError("invoice not found").
		WithHint("Invoice not found").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) GetByPaymentID(ctx context.Context, paymentID string) (*invoice.Invoice, error) {
	invoices, _ := s.InMemoryStore.List(ctx, nil, invoiceFilterFn, nil)
	for _, inv := range invoices {
		if inv.PaymentID != nil && *inv.PaymentID == paymentID {
			return inv, nil
		}
	}
	return nil, ierr.NewError("invoice not found for payment").
		WithHint("Invoice not found for payment").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) NextSequence(ctx context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[year]++
	return s.sequences[year], nil
}
