package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/skewscan/internal/arbitrage"
	"github.com/alanyoungcy/skewscan/internal/domain"
)

const spreadLockKey = "spread_run"

// SpreadConfig holds the tunables of a calculator pass.
type SpreadConfig struct {
	MinSkewPercent       float64
	TTL                  time.Duration
	PriceLookback        time.Duration // zero reads the whole price history
	LockTTL              time.Duration
	TopN                 int
	NotifyMinSkewPercent float64
}

// SpreadDeps are the collaborators of a SpreadService. Markets, Prices,
// Mappings, Spreads and Locks are required; the rest may be nil.
type SpreadDeps struct {
	Markets  domain.MarketStore
	Prices   domain.PriceStore
	Mappings domain.MappingStore
	Spreads  domain.SpreadStore
	Locks    domain.LockManager
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Reports  domain.ReportCache
	Archiver domain.Archiver
	Alerts   Alerter
}

// SpreadService runs calculator passes and owns the active spread set.
type SpreadService struct {
	deps     SpreadDeps
	calc     *arbitrage.Calculator
	cfg      SpreadConfig
	reporter reporter
	now      func() time.Time
	logger   *slog.Logger
}

// NewSpreadService creates a SpreadService.
func NewSpreadService(deps SpreadDeps, cfg SpreadConfig, logger *slog.Logger) *SpreadService {
	if cfg.TTL <= 0 {
		cfg.TTL = domain.SpreadTTL
	}
	logger = logger.With(slog.String("component", "spread_service"))
	return &SpreadService{
		deps: deps,
		calc: arbitrage.NewCalculator(cfg.MinSkewPercent, logger),
		cfg:  cfg,
		reporter: reporter{
			bus:     deps.Bus,
			reports: deps.Reports,
			audit:   deps.Audit,
			alerts:  deps.Alerts,
			logger:  logger,
		},
		now:    time.Now,
		logger: logger,
	}
}

// Run executes one calculator pass: read markets, prices and mappings,
// compute spreads, deactivate every active spread, then insert the new set.
//
// Concurrent passes are refused with domain.ErrRunInProgress. A read
// failure aborts before any write and leaves the active set untouched. A
// deactivation failure aborts the write phase. Insert failures are recorded
// in the report and do not stop the pass; the two steps are not atomic, so
// a pass that dies between them leaves fewer active spreads, never stale
// ones.
func (s *SpreadService) Run(ctx context.Context) (domain.RunReport, error) {
	unlock, err := s.deps.Locks.Acquire(ctx, spreadLockKey, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.RunReport{}, domain.ErrRunInProgress
		}
		return domain.RunReport{}, fmt.Errorf("spread_service: acquire run lock: %w", err)
	}
	defer unlock()

	// Postgres keeps microseconds; truncating keeps ExpiresAt-DetectedAt exact after a round trip.
	now := s.now().UTC().Truncate(time.Microsecond)
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		Kind:      domain.RunKindSpread,
		StartedAt: now,
	}

	markets, err := s.deps.Markets.ListActive(ctx, domain.ListOpts{})
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("spread_service: list markets: %w", err))
	}
	var since time.Time
	if s.cfg.PriceLookback > 0 {
		since = now.Add(-s.cfg.PriceLookback)
	}
	prices, err := s.deps.Prices.ListSince(ctx, since)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("spread_service: list prices: %w", err))
	}
	mappings, err := s.deps.Mappings.List(ctx)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("spread_service: list mappings: %w", err))
	}
	report.MarketsScanned = len(markets)
	report.PricesScanned = len(prices)

	res := s.calc.Compute(prices, markets, mappings)
	report.Found = len(res.Spreads)
	report.Skipped = res.Duplicates + res.Malformed + res.Inactive

	deactivated, err := s.deps.Spreads.DeactivateAll(ctx)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("spread_service: %w: %w", domain.ErrDeactivateFailed, err))
	}
	report.Deactivated = deactivated

	written := make([]domain.Spread, 0, len(res.Spreads))
	for _, sp := range res.Spreads {
		sp.ID = uuid.NewString()
		sp.Stamp(report.RunID, now, s.cfg.TTL)
		if err := s.deps.Spreads.Insert(ctx, sp); err != nil {
			s.logger.WarnContext(ctx, "spread_service: insert spread failed",
				slog.String("market_id", sp.MarketID),
				slog.String("buy_platform", sp.BuyPlatform),
				slog.String("sell_platform", sp.SellPlatform),
				slog.String("error", err.Error()),
			)
			report.AddError(fmt.Errorf("insert spread %s %s/%s: %w", sp.MarketID, sp.BuyPlatform, sp.SellPlatform, err))
			continue
		}
		written = append(written, sp)
	}
	report.Written = len(written)
	report.TopSpreads = topN(written, s.cfg.TopN)
	report.FinishedAt = s.now().UTC()

	s.logger.InfoContext(ctx, "spread_service: pass complete",
		slog.String("run_id", report.RunID),
		slog.Int("markets", report.MarketsScanned),
		slog.Int("prices", report.PricesScanned),
		slog.Int("groups", res.Groups),
		slog.Int("pairs", res.PairsCompared),
		slog.Int("found", report.Found),
		slog.Int("written", report.Written),
		slog.Int64("deactivated", report.Deactivated),
		slog.Int("malformed", res.Malformed),
		slog.Int("inactive", res.Inactive),
		slog.Int("duplicates", res.Duplicates),
	)

	s.archive(ctx, report, written)
	s.reporter.publish(ctx, domain.ChannelSpreads, report)
	if len(written) > 0 && written[0].SkewPercentage >= s.cfg.NotifyMinSkewPercent {
		top := written[0]
		s.reporter.alert(ctx, EventSpreadDetected,
			fmt.Sprintf("Skew %.2f%% on %s", top.SkewPercentage, top.MarketID),
			fmt.Sprintf("buy %s %s @ %.2f, sell %s @ %.2f, profit %.2f per $100 (%d active)",
				top.Side, top.BuyPlatform, top.BuyPrice, top.SellPlatform, top.SellPrice,
				top.PotentialProfit, len(written)),
		)
	}
	return report, nil
}

// ListActive returns the currently active spreads, highest skew first.
func (s *SpreadService) ListActive(ctx context.Context, limit int) ([]domain.Spread, error) {
	spreads, err := s.deps.Spreads.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("spread_service: list active: %w", err)
	}
	return spreads, nil
}

func (s *SpreadService) fail(ctx context.Context, report domain.RunReport, err error) (domain.RunReport, error) {
	report.Failed = true
	report.AddError(err)
	report.FinishedAt = s.now().UTC()
	s.logger.ErrorContext(ctx, "spread_service: pass aborted",
		slog.String("run_id", report.RunID),
		slog.String("error", err.Error()),
	)
	s.reporter.publish(ctx, domain.ChannelSpreads, report)
	return report, err
}

func (s *SpreadService) archive(ctx context.Context, report domain.RunReport, spreads []domain.Spread) {
	if s.deps.Archiver == nil || len(spreads) == 0 {
		return
	}
	key, err := s.deps.Archiver.ArchiveSpreads(ctx, report, spreads)
	if err != nil {
		s.logger.WarnContext(ctx, "spread_service: archive snapshot failed",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "spread_service: snapshot archived", slog.String("key", key))
}

func topN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
