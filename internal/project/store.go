package project

import (
	"context"

	"escrowScope/internal/model"
)

// Store is the materialized view the projector writes to. Implementations
// must make every write idempotent: PutEvent keyed on the deterministic
// record id, PutDeal as a full-row upsert, EnsureUser as insert-if-absent.
type Store interface {
	GetDeal(ctx context.Context, id string) (model.Deal, bool, error)
	PutDeal(ctx context.Context, deal model.Deal) error
	EnsureUser(ctx context.Context, address string) error
	PutEvent(ctx context.Context, record model.EventRecord) error
}
