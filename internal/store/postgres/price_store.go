package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a new PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// InsertBatch appends quote rows. Prices are immutable once written.
func (s *PriceStore) InsertBatch(ctx context.Context, prices []domain.Price) error {
	if len(prices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO prices (market_id, platform, yes_price, no_price, volume_24h, total_volume, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, p := range prices {
		recorded := p.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		batch.Queue(query,
			p.MarketID, p.Platform, p.YesPrice, p.NoPrice,
			p.Volume24h, p.TotalVolume, recorded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range prices {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert price batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListSince returns, for every (market, platform) pair of an active market
// quoted at or after since, its most recent row. Older rows for the same
// pair cannot win the latest-price reduction, so they are dropped in SQL.
func (s *PriceStore) ListSince(ctx context.Context, since time.Time) ([]domain.Price, error) {
	const query = `
		SELECT DISTINCT ON (p.market_id, p.platform)
			p.market_id, p.platform, p.yes_price, p.no_price, p.volume_24h, p.total_volume, p.recorded_at
		FROM prices p
		JOIN markets m ON m.id = p.market_id AND m.status = 'active'
		WHERE p.recorded_at >= $1
		ORDER BY p.market_id, p.platform, p.recorded_at DESC, p.yes_price, p.no_price`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var prices []domain.Price
	for rows.Next() {
		var p domain.Price
		if err := rows.Scan(
			&p.MarketID, &p.Platform, &p.YesPrice, &p.NoPrice,
			&p.Volume24h, &p.TotalVolume, &p.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list prices rows: %w", err)
	}
	return prices, nil
}
