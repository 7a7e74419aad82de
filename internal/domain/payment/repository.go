package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Payment operations
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)

	// TotalRevenue sums completed payment amounts for a tenant whose
	// completion time falls within [start, end].
	TotalRevenue(ctx context.Context, tenantID string, start, end time.Time) (decimal.Decimal, error)

	// GetByGatewayOrderID looks a payment up by its provider order id.
	// Inside a transaction the row is locked for update so concurrent
	// completions of the same payment serialize.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error)

	// Payment method operations
	CreateMethod(ctx context.Context, method *PaymentMethod) error
	GetMethod(ctx context.Context, id string) (*PaymentMethod, error)
	UpdateMethod(ctx context.Context, method *PaymentMethod) error
	DeleteMethod(ctx context.Context, id string) error
	ListMethods(ctx context.Context, tenantID string) ([]*PaymentMethod, error)
}
