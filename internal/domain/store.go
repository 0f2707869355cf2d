package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore reads market metadata written by the ingestion adapters.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
}

// PriceStore reads the append-only quote history.
type PriceStore interface {
	InsertBatch(ctx context.Context, prices []Price) error
	ListSince(ctx context.Context, since time.Time) ([]Price, error)
}

// MappingStore persists cross-platform market mappings keyed by the
// unordered id pair.
type MappingStore interface {
	Upsert(ctx context.Context, m Mapping) error
	Get(ctx context.Context, marketIDA, marketIDB string) (Mapping, error)
	List(ctx context.Context) ([]Mapping, error)
	SetVerified(ctx context.Context, marketIDA, marketIDB string, verified bool) error
}

// SpreadStore persists spread opportunities. A pass deactivates every
// active row and then inserts its own set.
type SpreadStore interface {
	DeactivateAll(ctx context.Context) (int64, error)
	Insert(ctx context.Context, s Spread) error
	ListActive(ctx context.Context, limit int) ([]Spread, error)
	ListByRun(ctx context.Context, runID string) ([]Spread, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
