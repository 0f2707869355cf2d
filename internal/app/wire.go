package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/skewscan/internal/blob/s3"
	"github.com/alanyoungcy/skewscan/internal/cache/redis"
	"github.com/alanyoungcy/skewscan/internal/config"
	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/notify"
	"github.com/alanyoungcy/skewscan/internal/server/handler"
	"github.com/alanyoungcy/skewscan/internal/service"
	"github.com/alanyoungcy/skewscan/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Optional collaborators
// stay nil interfaces when their backend is not configured.
type Dependencies struct {
	Markets  domain.MarketStore
	Prices   domain.PriceStore
	Mappings domain.MappingStore
	Spreads  domain.SpreadStore
	Audit    domain.AuditStore

	Locks   domain.LockManager
	Bus     domain.SignalBus
	Reports domain.ReportCache // nil without Redis
	Limiter domain.RateLimiter // nil without Redis
	Archive domain.Archiver    // nil unless archive.enabled
	Alerts  service.Alerter    // nil without senders

	Checks map[string]handler.HealthCheck
}

// Wire builds the concrete dependencies and a cleanup func releasing them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Checks: make(map[string]handler.HealthCheck)}

	// postgres
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
		AppName:  "skewscan-" + cfg.Mode,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pg.Close)
	if cfg.Postgres.RunMigrations {
		applied, err := pg.RunMigrations(ctx)
		if err != nil {
			return fail("postgres migrations", err)
		}
		if len(applied) > 0 {
			logger.InfoContext(ctx, "wire: migrations applied", slog.Any("migrations", applied))
		}
	}
	pool := pg.Pool()
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Prices = postgres.NewPriceStore(pool)
	deps.Mappings = postgres.NewMappingStore(pool)
	deps.Spreads = postgres.NewSpreadStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)
	deps.Checks["postgres"] = pg.Ping

	// redis, or in-process fallbacks
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Locks = redis.NewLockManager(rc)
		deps.Bus = redis.NewSignalBus(rc, cfg.Redis.StreamMax)
		deps.Reports = redis.NewReportCache(rc, cfg.Redis.ReportTTL.Duration)
		deps.Limiter = redis.NewRateLimiter(rc)
		deps.Checks["redis"] = rc.Ping
	} else {
		logger.WarnContext(ctx, "wire: redis disabled, using in-process lock and bus")
		deps.Locks = service.NewLocalLockManager()
		deps.Bus = service.NewLocalBus(int(cfg.Redis.StreamMax))
	}

	// s3 snapshots
	if cfg.Archive.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		threshold := int64(cfg.Archive.MultipartThreshMB) << 20
		deps.Archive = s3blob.NewSnapshotArchiver(s3blob.NewWriter(sc), cfg.Archive.Prefix, threshold)
		deps.Checks["s3"] = sc.Health
	}

	// notifications
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID,
			cfg.Notify.MaxRetries, cfg.Notify.RetryDelay.Duration)
		if err != nil {
			return fail("telegram", err)
		}
		senders = append(senders, tg)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Alerts = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// services builds both pass services from deps.
func (a *App) services(deps *Dependencies) (*service.MatchService, *service.SpreadService, error) {
	pairs, err := service.ParsePlatformPairs(a.cfg.Matcher.PlatformPairs)
	if err != nil {
		return nil, nil, err
	}
	match := service.NewMatchService(service.MatchDeps{
		Markets:  deps.Markets,
		Mappings: deps.Mappings,
		Audit:    deps.Audit,
		Bus:      deps.Bus,
		Reports:  deps.Reports,
		Archiver: deps.Archive,
		Alerts:   deps.Alerts,
	}, service.MatchConfig{
		Threshold: a.cfg.Matcher.Threshold,
		Pairs:     pairs,
		TopN:      a.cfg.Matcher.TopN,
	}, a.logger)

	spread := service.NewSpreadService(service.SpreadDeps{
		Markets:  deps.Markets,
		Prices:   deps.Prices,
		Mappings: deps.Mappings,
		Spreads:  deps.Spreads,
		Locks:    deps.Locks,
		Audit:    deps.Audit,
		Bus:      deps.Bus,
		Reports:  deps.Reports,
		Archiver: deps.Archive,
		Alerts:   deps.Alerts,
	}, service.SpreadConfig{
		MinSkewPercent:       a.cfg.Spreads.MinSkewPercent,
		TTL:                  a.cfg.Spreads.TTL.Duration,
		PriceLookback:        a.cfg.Spreads.PriceLookback.Duration,
		LockTTL:              a.cfg.Spreads.LockTTL.Duration,
		TopN:                 a.cfg.Spreads.TopN,
		NotifyMinSkewPercent: a.cfg.Notify.MinSkewPercent,
	}, a.logger)

	return match, spread, nil
}
