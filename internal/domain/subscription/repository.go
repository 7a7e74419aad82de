package subscription

import (
	"context"

	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error

	// GetActiveByTenant returns the tenant's ACTIVE or TRIALING
	// subscription, or ErrNotFound when none exists.
	GetActiveByTenant(ctx context.Context, tenantID string) (*Subscription, error)
}
