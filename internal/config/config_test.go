package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "spread"

[matcher]
threshold = 0.55
platform_pairs = ["kalshi:polymarket"]

[spreads]
ttl = "10m"
interval = "0s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "spread" || cfg.Matcher.Threshold != 0.55 {
		t.Errorf("file values not applied: mode=%q threshold=%g", cfg.Mode, cfg.Matcher.Threshold)
	}
	if cfg.Spreads.TTL.Duration != 10*time.Minute || cfg.Spreads.Interval.Duration != 0 {
		t.Errorf("durations = %v / %v", cfg.Spreads.TTL, cfg.Spreads.Interval)
	}
	if cfg.Spreads.MinSkewPercent != 1.0 || cfg.Postgres.Port != 5432 {
		t.Error("defaults lost for keys absent from the file")
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeTOML(t, "[spreads]\nmin_skew = 2\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "spreads.min_skew") {
		t.Fatalf("err = %v, want unknown key spreads.min_skew", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SKEWSCAN_SPREADS_MIN_SKEW_PERCENT", "2.5")
	t.Setenv("SKEWSCAN_MATCHER_PLATFORM_PAIRS", "kalshi:polymarket, ,polymarket:manifold")
	t.Setenv("SKEWSCAN_SPREADS_PRICE_LOOKBACK", "1h")
	t.Setenv("SKEWSCAN_SERVER_PORT", "not-a-number")
	t.Setenv("SKEWSCAN_REDIS_ADDR", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Spreads.MinSkewPercent != 2.5 {
		t.Errorf("min skew = %g, want 2.5", cfg.Spreads.MinSkewPercent)
	}
	if got := cfg.Matcher.PlatformPairs; len(got) != 2 || got[1] != "polymarket:manifold" {
		t.Errorf("pairs = %v", got)
	}
	if cfg.Spreads.PriceLookback.Duration != time.Hour {
		t.Errorf("lookback = %v, want 1h", cfg.Spreads.PriceLookback)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("unparsable port override applied: %d", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("empty SKEWSCAN_REDIS_ADDR should disable redis, got %q", cfg.Redis.Addr)
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Matcher.Threshold = 0
	cfg.Matcher.PlatformPairs = []string{"kalshi"}
	cfg.Spreads.TTL.Duration = 0
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.Events = []string{"order_filled"}
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		"matcher: threshold",
		`platform pair "kalshi"`,
		"spreads: ttl",
		"telegram_token and telegram_chat_id",
		`unknown event "order_filled"`,
		"s3: bucket",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg"
	cfg.Server.APIKey = "key"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != redacted || out.Server.APIKey != redacted || out.Notify.TelegramToken != redacted {
		t.Errorf("secrets not redacted: %+v", out)
	}
	if out.S3.SecretKey != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Postgres.Password != "pg" {
		t.Error("original modified")
	}

	out.Notify.Events[0] = "changed"
	if cfg.Notify.Events[0] == "changed" {
		t.Error("slices shared with original")
	}
}

func TestValidate_SeedModeNeedsFile(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "seed"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "seed_file") {
		t.Fatalf("err = %v, want seed_file problem", err)
	}
	cfg.SeedFile = "fixtures/markets.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
