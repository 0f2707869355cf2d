package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// MappingStore implements domain.MappingStore using PostgreSQL.
type MappingStore struct {
	pool *pgxpool.Pool
}

// NewMappingStore creates a new MappingStore.
func NewMappingStore(pool *pgxpool.Pool) *MappingStore {
	return &MappingStore{pool: pool}
}

const mappingCols = `market_id_a, market_id_b, similarity_score, manual_verified, updated_at`

// Upsert inserts a mapping or refreshes its score. Rows with
// manual_verified set are left alone, which makes the write safe even if a
// caller skipped its own verified check.
func (s *MappingStore) Upsert(ctx context.Context, m domain.Mapping) error {
	a, b := domain.OrderPair(m.MarketIDA, m.MarketIDB)
	const query = `
		INSERT INTO market_mappings (market_id_a, market_id_b, similarity_score, manual_verified, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_id_a, market_id_b) DO UPDATE SET
			similarity_score = EXCLUDED.similarity_score,
			updated_at       = EXCLUDED.updated_at
		WHERE NOT market_mappings.manual_verified`

	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, query, a, b, m.SimilarityScore, m.ManualVerified, updatedAt); err != nil {
		return fmt.Errorf("postgres: upsert mapping %s: %w", domain.PairKey(a, b), err)
	}
	return nil
}

// Get returns the mapping for an unordered pair.
func (s *MappingStore) Get(ctx context.Context, marketIDA, marketIDB string) (domain.Mapping, error) {
	a, b := domain.OrderPair(marketIDA, marketIDB)
	row := s.pool.QueryRow(ctx,
		`SELECT `+mappingCols+` FROM market_mappings WHERE market_id_a = $1 AND market_id_b = $2`, a, b)
	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Mapping{}, domain.ErrNotFound
		}
		return domain.Mapping{}, fmt.Errorf("postgres: get mapping %s: %w", domain.PairKey(a, b), err)
	}
	return m, nil
}

// List returns every mapping, highest score first.
func (s *MappingStore) List(ctx context.Context) ([]domain.Mapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+mappingCols+` FROM market_mappings ORDER BY similarity_score DESC, market_id_a, market_id_b`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list mappings: %w", err)
	}
	defer rows.Close()

	var list []domain.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan mapping: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list mappings rows: %w", err)
	}
	return list, nil
}

// SetVerified flips the manual override. It returns domain.ErrNotFound
// when the pair has never been mapped.
func (s *MappingStore) SetVerified(ctx context.Context, marketIDA, marketIDB string, verified bool) error {
	a, b := domain.OrderPair(marketIDA, marketIDB)
	tag, err := s.pool.Exec(ctx, `
		UPDATE market_mappings SET manual_verified = $3, updated_at = NOW()
		WHERE market_id_a = $1 AND market_id_b = $2`, a, b, verified)
	if err != nil {
		return fmt.Errorf("postgres: set mapping verified %s: %w", domain.PairKey(a, b), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMapping(row pgx.Row) (domain.Mapping, error) {
	var m domain.Mapping
	err := row.Scan(&m.MarketIDA, &m.MarketIDB, &m.SimilarityScore, &m.ManualVerified, &m.UpdatedAt)
	return m, err
}
