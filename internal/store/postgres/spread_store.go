package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// SpreadStore implements domain.SpreadStore using PostgreSQL.
type SpreadStore struct {
	pool *pgxpool.Pool
}

// NewSpreadStore creates a new SpreadStore.
func NewSpreadStore(pool *pgxpool.Pool) *SpreadStore {
	return &SpreadStore{pool: pool}
}

const spreadCols = `id, run_id, market_id, side, buy_platform, sell_platform,
	buy_price, sell_price, skew_percentage, potential_profit,
	is_active, detected_at, expires_at`

// DeactivateAll marks every active spread inactive and reports how many
// rows changed.
func (s *SpreadStore) DeactivateAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE spreads SET is_active = FALSE WHERE is_active`)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate spreads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Insert stores one spread.
func (s *SpreadStore) Insert(ctx context.Context, sp domain.Spread) error {
	const query = `
		INSERT INTO spreads (` + spreadCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.pool.Exec(ctx, query,
		sp.ID, sp.RunID, sp.MarketID, string(sp.Side), sp.BuyPlatform, sp.SellPlatform,
		sp.BuyPrice, sp.SellPrice, sp.SkewPercentage, sp.PotentialProfit,
		sp.IsActive, sp.DetectedAt, sp.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert spread %s: %w", sp.ID, err)
	}
	return nil
}

// ListActive returns active spreads, highest skew first. A limit of zero
// returns all of them.
func (s *SpreadStore) ListActive(ctx context.Context, limit int) ([]domain.Spread, error) {
	query := `SELECT ` + spreadCols + ` FROM spreads WHERE is_active ORDER BY skew_percentage DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.query(ctx, "list active spreads", query, args...)
}

// ListByRun returns every spread a pass inserted, active or not.
func (s *SpreadStore) ListByRun(ctx context.Context, runID string) ([]domain.Spread, error) {
	return s.query(ctx, "list spreads by run",
		`SELECT `+spreadCols+` FROM spreads WHERE run_id = $1 ORDER BY skew_percentage DESC, id`, runID)
}

func (s *SpreadStore) query(ctx context.Context, what, query string, args ...any) ([]domain.Spread, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", what, err)
	}
	defer rows.Close()

	var list []domain.Spread
	for rows.Next() {
		sp, err := scanSpread(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan spread: %w", err)
		}
		list = append(list, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", what, err)
	}
	return list, nil
}

func scanSpread(row pgx.Row) (domain.Spread, error) {
	var sp domain.Spread
	var side string
	err := row.Scan(
		&sp.ID, &sp.RunID, &sp.MarketID, &side, &sp.BuyPlatform, &sp.SellPlatform,
		&sp.BuyPrice, &sp.SellPrice, &sp.SkewPercentage, &sp.PotentialProfit,
		&sp.IsActive, &sp.DetectedAt, &sp.ExpiresAt,
	)
	if err != nil {
		return domain.Spread{}, err
	}
	sp.Side = domain.Side(side)
	return sp, nil
}
