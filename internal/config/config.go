// Package config defines the skewscan configuration and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by SKEWSCAN_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Matcher  MatcherConfig  `toml:"matcher"`
	Spreads  SpreadsConfig  `toml:"spreads"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	SeedFile string         `toml:"seed_file"` // JSON fixture loaded by the seed mode
}

// PostgresConfig holds the market store connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr runs
// without Redis: in-process lock and bus, no report cache or rate limit.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	ReportTTL  duration `toml:"report_ttl"`
	StreamMax  int64    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls pass snapshots in object storage.
type ArchiveConfig struct {
	Enabled           bool   `toml:"enabled"`
	Prefix            string `toml:"prefix"`
	MultipartThreshMB int    `toml:"multipart_threshold_mb"`
}

// MatcherConfig tunes the cross-platform market matcher.
type MatcherConfig struct {
	Threshold     float64  `toml:"threshold"`
	PlatformPairs []string `toml:"platform_pairs"` // "source:target"
	Interval      duration `toml:"interval"`       // 0 disables the scheduled pass
	TopN          int      `toml:"top_n"`
}

// SpreadsConfig tunes the spread calculator pass.
type SpreadsConfig struct {
	MinSkewPercent float64  `toml:"min_skew_percent"`
	TTL            duration `toml:"ttl"`
	PriceLookback  duration `toml:"price_lookback"` // 0 reads every stored price
	LockTTL        duration `toml:"lock_ttl"`
	Interval       duration `toml:"interval"` // 0 disables the scheduled pass
	TopN           int      `toml:"top_n"`
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
	Scheduler       bool     `toml:"scheduler"`
}

// NotifyConfig holds alert channel credentials and filters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinSkewPercent    float64  `toml:"min_skew_percent"`
	MaxRetries        int      `toml:"max_retries"`
	RetryDelay        duration `toml:"retry_delay"`
}

// duration lets TOML carry values like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. config.example.toml mirrors
// these values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "skewscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "skewscan",
			ReportTTL:  duration{24 * time.Hour},
			StreamMax:  1000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "skewscan",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:           false,
			Prefix:            "snapshots",
			MultipartThreshMB: 5,
		},
		Matcher: MatcherConfig{
			Threshold: 0.4,
			Interval:  duration{time.Hour},
			TopN:      10,
		},
		Spreads: SpreadsConfig{
			MinSkewPercent: 1.0,
			TTL:            duration{5 * time.Minute},
			PriceLookback:  duration{15 * time.Minute},
			LockTTL:        duration{2 * time.Minute},
			Interval:       duration{time.Minute},
			TopN:           10,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       10,
			RateLimitWindow: duration{time.Minute},
			Scheduler:       true,
		},
		Notify: NotifyConfig{
			Events:         []string{"spread_detected", "run_failed"},
			MinSkewPercent: 5.0,
			MaxRetries:     3,
			RetryDelay:     duration{time.Second},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"match":  true,
	"spread": true,
	"serve":  true,
	"seed":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEvents = map[string]bool{
	"spread_detected": true,
	"mapping_created": true,
	"run_failed":      true,
}

// Validate checks every section and returns all problems at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: match, spread, serve, seed)", c.Mode)
	}
	if strings.EqualFold(c.Mode, "seed") && strings.TrimSpace(c.SeedFile) == "" {
		add("seed mode needs seed_file")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			add("postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			add("postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		add("postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		add("postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr != "" && c.Redis.DB < 0 {
		add("redis: db must be >= 0")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket is required when archive is enabled")
		}
		if c.S3.Region == "" {
			add("s3: region is required when archive is enabled")
		}
		if c.Archive.MultipartThreshMB < 5 {
			add("archive: multipart_threshold_mb must be >= 5")
		}
	}

	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		add("matcher: threshold must be in (0, 1], got %g", c.Matcher.Threshold)
	}
	for _, p := range c.Matcher.PlatformPairs {
		src, dst, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
			add("matcher: platform pair %q must look like source:target", p)
		}
	}
	if c.Matcher.Interval.Duration < 0 {
		add("matcher: interval must not be negative")
	}

	if c.Spreads.MinSkewPercent < 0 {
		add("spreads: min_skew_percent must not be negative")
	}
	if c.Spreads.TTL.Duration <= 0 {
		add("spreads: ttl must be positive")
	}
	if c.Spreads.PriceLookback.Duration < 0 {
		add("spreads: price_lookback must not be negative")
	}
	if c.Spreads.LockTTL.Duration <= 0 {
		add("spreads: lock_ttl must be positive")
	}
	if c.Spreads.Interval.Duration < 0 {
		add("spreads: interval must not be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		add("server: rate_limit_window must be positive when rate_limit is set")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validEvents[strings.TrimSpace(e)] {
			add("notify: unknown event %q (valid: spread_detected, mapping_created, run_failed)", e)
		}
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}
