package testutil

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/twelvenexus/oneplan-billing/internal/postgres"
)

// TxStore is an in-memory store that can be rolled back when a
// transaction closure returns an error.
type TxStore interface {
	Snapshot() any
	Restore(any)
}

// MockPostgresClient satisfies postgres.IClient for service tests.
// WithTx snapshots the registered stores before running the closure
// and restores them when it returns an error, mirroring the rollback
// behavior of the real client. Nested WithTx calls reuse the outer
// transaction, again like the real client.
type MockPostgresClient struct {
	stores []TxStore
}

type mockTxKey struct{}

func NewMockPostgresClient(stores ...TxStore) postgres.IClient {
	return &MockPostgresClient{stores: stores}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(mockTxKey{}) != nil {
		return fn(ctx)
	}

	snapshots := make([]any, len(c.stores))
	for i, store := range c.stores {
		snapshots[i] = store.Snapshot()
	}

	if err := fn(context.WithValue(ctx, mockTxKey{}, true)); err != nil {
		for i, store := range c.stores {
			store.Restore(snapshots[i])
		}
		return err
	}
	return nil
}

func (c *MockPostgresClient) TxFromContext(ctx context.Context) *sqlx.Tx {
	return nil
}

func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}
