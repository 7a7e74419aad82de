package invoice

import (
	"context"

	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// CreateWithLineItems persists the invoice and its line items atomically
	CreateWithLineItems(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Invoice, error)
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
	Update(ctx context.Context, inv *Invoice) error

	// NextSequence atomically claims the next invoice sequence number
	// for the given year. Two generations in the same year never see
	// the same value.
	NextSequence(ctx context.Context, year int) (int64, error)
}
