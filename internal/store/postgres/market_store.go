package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, title, category, platform, resolution_date, status, created_at, updated_at`

// UpsertBatch inserts or updates markets in a single batch. Ingestion
// adapters own this table; the method exists for them and for seeding.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO markets (id, title, category, platform, resolution_date, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title           = EXCLUDED.title,
			category        = EXCLUDED.category,
			platform        = EXCLUDED.platform,
			resolution_date = EXCLUDED.resolution_date,
			status          = EXCLUDED.status,
			updated_at      = NOW()`

	for _, m := range markets {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("postgres: upsert market %q: %w", m.ID, err)
		}
		status := m.Status
		if status == "" {
			status = domain.MarketStatusActive
		}
		batch.Queue(query,
			m.ID, m.Title, string(domain.ParseCategory(string(m.Category))), m.Platform,
			m.ResolutionDate, string(status),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListActive returns active markets ordered by platform then id, so matcher
// passes see a stable iteration order.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query, args := listQuery(
		`SELECT `+marketCols+` FROM markets WHERE status = 'active'`, nil,
		opts, "updated_at", "platform, id",
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active markets rows: %w", err)
	}
	return markets, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var category, status string
	err := row.Scan(
		&m.ID, &m.Title, &category, &m.Platform,
		&m.ResolutionDate, &status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Category = domain.ParseCategory(category)
	m.Status = domain.MarketStatus(status)
	return m, nil
}
