package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// Fixture is a batch of markets and quotes written by the seed mode. It
// stands in for an ingestion adapter in local setups and demos.
type Fixture struct {
	Markets []domain.Market `json:"markets"`
	Prices  []domain.Price  `json:"prices"`
}

// LoadFixture decodes a JSON fixture, rejecting unknown fields.
func LoadFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return Fixture{}, fmt.Errorf("seeder: decode fixture: %w", err)
	}
	return fx, nil
}

// Seeder writes fixtures through the market and price stores.
type Seeder struct {
	markets domain.MarketStore
	prices  domain.PriceStore
	now     func() time.Time
	logger  *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(markets domain.MarketStore, prices domain.PriceStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		markets: markets,
		prices:  prices,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "seeder")),
	}
}

// Seed validates the whole fixture and then upserts markets before
// appending prices. Nothing is written when any row is invalid. Markets
// without a status are stored as active and category text is mapped onto
// the fixed taxonomy; prices without a timestamp are stamped now.
func (s *Seeder) Seed(ctx context.Context, fx Fixture) error {
	now := s.now().UTC()
	var errs []error

	markets := make([]domain.Market, len(fx.Markets))
	for i, m := range fx.Markets {
		m.Title = strings.TrimSpace(m.Title)
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("market %d (%q): %w", i, m.ID, err))
		}
		if m.Status == "" {
			m.Status = domain.MarketStatusActive
		}
		m.Category = domain.ParseCategory(string(m.Category))
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		markets[i] = m
	}

	prices := make([]domain.Price, len(fx.Prices))
	for i, p := range fx.Prices {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("price %d (%s/%s): %w", i, p.MarketID, p.Platform, err))
		}
		if p.RecordedAt.IsZero() {
			p.RecordedAt = now
		}
		prices[i] = p
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("seeder: invalid fixture: %w", err)
	}

	if len(markets) > 0 {
		if err := s.markets.UpsertBatch(ctx, markets); err != nil {
			return fmt.Errorf("seeder: upsert markets: %w", err)
		}
	}
	if len(prices) > 0 {
		if err := s.prices.InsertBatch(ctx, prices); err != nil {
			return fmt.Errorf("seeder: insert prices: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "seeder: fixture written",
		slog.Int("markets", len(markets)),
		slog.Int("prices", len(prices)),
	)
	return nil
}
