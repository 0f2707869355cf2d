package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/pipeline"
	"github.com/alanyoungcy/skewscan/internal/server"
	"github.com/alanyoungcy/skewscan/internal/server/handler"
	"github.com/alanyoungcy/skewscan/internal/server/ws"
	"github.com/alanyoungcy/skewscan/internal/service"
)

const shutdownTimeout = 10 * time.Second

// MatchMode runs one matcher pass and returns.
func (a *App) MatchMode(ctx context.Context, deps *Dependencies) error {
	match, _, err := a.services(deps)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	report, err := match.Run(ctx)
	a.logReport(ctx, report, err)
	return err
}

// SpreadMode runs one calculator pass and returns.
func (a *App) SpreadMode(ctx context.Context, deps *Dependencies) error {
	_, spread, err := a.services(deps)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	report, err := spread.Run(ctx)
	a.logReport(ctx, report, err)
	return err
}

// SeedMode writes the configured JSON fixture into the market store.
func (a *App) SeedMode(ctx context.Context, deps *Dependencies) error {
	f, err := os.Open(a.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("app: open seed file: %w", err)
	}
	defer f.Close()

	fx, err := service.LoadFixture(f)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return service.NewSeeder(deps.Markets, deps.Prices, a.logger).Seed(ctx, fx)
}

// ServeMode runs the HTTP API, the websocket hub and, when enabled, the
// scheduler until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	match, spread, err := a.services(deps)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var trigger handler.Triggerer
	if a.cfg.Server.Scheduler {
		sched := pipeline.NewScheduler(a.logger,
			pipeline.Job{
				Name:       pipeline.JobMatch,
				Runner:     match,
				Interval:   a.cfg.Matcher.Interval.Duration,
				RunOnStart: a.cfg.Matcher.Interval.Duration > 0,
				Then:       pipeline.JobSpread,
			},
			pipeline.Job{
				Name:     pipeline.JobSpread,
				Runner:   spread,
				Interval: a.cfg.Spreads.Interval.Duration,
			},
		)
		trigger = sched
		g.Go(func() error { return sched.Run(ctx) })
	}

	hub := ws.NewHub(deps.Bus, nil, a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(handler.StatusInfo{
			Mode:             a.cfg.Mode,
			Threshold:        a.cfg.Matcher.Threshold,
			MinSkewPercent:   a.cfg.Spreads.MinSkewPercent,
			MatchInterval:    a.cfg.Matcher.Interval.Duration,
			SpreadInterval:   a.cfg.Spreads.Interval.Duration,
			SchedulerEnabled: a.cfg.Server.Scheduler,
			RedisEnabled:     a.cfg.Redis.Addr != "",
			ArchiveEnabled:   a.cfg.Archive.Enabled,
		}),
		Spreads:  handler.NewSpreadHandler(spread, trigger, pipeline.JobSpread, a.logger),
		Mappings: handler.NewMappingHandler(match, trigger, pipeline.JobMatch, a.logger),
		Runs: handler.NewRunsHandler(handler.RunsDeps{
			Reports: deps.Reports,
			Spreads: deps.Spreads,
			Bus:     deps.Bus,
			Audit:   deps.Audit,
		}, a.logger),
		Markets: handler.NewMarketHandler(deps.Markets, a.logger),
	}, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

func (a *App) logReport(ctx context.Context, report domain.RunReport, err error) {
	attrs := []any{
		slog.String("run_id", report.RunID),
		slog.String("kind", string(report.Kind)),
		slog.Int("markets", report.MarketsScanned),
		slog.Int("prices", report.PricesScanned),
		slog.Int("found", report.Found),
		slog.Int("written", report.Written),
		slog.Int("skipped", report.Skipped),
		slog.Int64("deactivated", report.Deactivated),
		slog.Int("row_errors", len(report.Errors)),
	}
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		a.logger.WarnContext(ctx, "app: pass skipped, another run holds the lock")
	case err != nil:
		a.logger.ErrorContext(ctx, "app: pass failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		a.logger.InfoContext(ctx, "app: pass complete", attrs...)
	}
}
