package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

func electionMarkets() []domain.Market {
	day := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)
	return []domain.Market{
		{ID: "kalshi-pres", Platform: "kalshi", Title: "Trump wins 2024 election", Category: domain.CategoryPolitics, ResolutionDate: &day},
		{ID: "poly-pres", Platform: "polymarket", Title: "Will Trump win the 2024 Presidential Election?", Category: domain.CategoryPolitics, ResolutionDate: &next},
		{ID: "poly-btc", Platform: "polymarket", Title: "Bitcoin above $150k?", Category: domain.CategoryCrypto},
		{ID: "kalshi-empty", Platform: "kalshi", Title: ""},
	}
}

func newMatchFixture(mappings *memMappings) (*MatchService, *memMarkets, *memAudit) {
	markets := &memMarkets{markets: electionMarkets()}
	audit := &memAudit{}
	svc := NewMatchService(MatchDeps{
		Markets:  markets,
		Mappings: mappings,
		Audit:    audit,
		Bus:      &recordingBus{},
		Reports:  &memReports{},
		Archiver: &memArchiver{},
		Alerts:   &recordingAlerts{},
	}, MatchConfig{TopN: 3}, testLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, markets, audit
}

func TestMatchService_CreatesMapping(t *testing.T) {
	mappings := newMemMappings()
	svc, _, _ := newMatchFixture(mappings)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Written != 1 || len(mappings.rows) != 1 {
		t.Fatalf("written=%d rows=%d, want 1/1", report.Written, len(mappings.rows))
	}
	m, err := mappings.Get(context.Background(), "poly-pres", "kalshi-pres")
	if err != nil {
		t.Fatalf("mapping missing: %v", err)
	}
	if m.MarketIDA != "kalshi-pres" || m.SimilarityScore < 0.4 {
		t.Errorf("unexpected mapping %+v", m)
	}
	if len(report.TopMappings) != 1 {
		t.Errorf("top mappings = %+v", report.TopMappings)
	}
}

func TestMatchService_Idempotent(t *testing.T) {
	mappings := newMemMappings()
	svc, _, _ := newMatchFixture(mappings)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := mappings.rows["kalshi-pres|poly-pres"]
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(mappings.rows) != 1 {
		t.Fatalf("rows = %d after rerun, want 1", len(mappings.rows))
	}
	if second := mappings.rows["kalshi-pres|poly-pres"]; second != first {
		t.Errorf("mapping changed: %+v -> %+v", first, second)
	}
}

func TestMatchService_SkipsManuallyVerified(t *testing.T) {
	manual := domain.NewMapping("kalshi-pres", "poly-pres", 0.99)
	manual.ManualVerified = true
	mappings := newMemMappings(manual)
	svc, _, _ := newMatchFixture(mappings)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 1 || report.Written != 0 || mappings.upserts != 0 {
		t.Errorf("skipped=%d written=%d upserts=%d, want 1/0/0", report.Skipped, report.Written, mappings.upserts)
	}
	if got := mappings.rows[manual.Key()]; got != manual {
		t.Errorf("manual mapping altered: %+v", got)
	}
}

func TestMatchService_UpsertFailureRecorded(t *testing.T) {
	mappings := newMemMappings()
	mappings.upsertErr = map[string]error{"kalshi-pres|poly-pres": errBoom}
	svc, _, _ := newMatchFixture(mappings)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v, want per-row failure only", err)
	}
	if report.Failed || len(report.Errors) != 1 || report.Written != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestMatchService_ReadFailureAborts(t *testing.T) {
	mappings := newMemMappings()
	svc, markets, _ := newMatchFixture(mappings)
	markets.err = errBoom

	report, err := svc.Run(context.Background())
	if !errors.Is(err, errBoom) || !report.Failed {
		t.Fatalf("err=%v failed=%v", err, report.Failed)
	}
	if mappings.upserts != 0 {
		t.Errorf("upserted %d mappings after read failure", mappings.upserts)
	}
}

func TestMatchService_ConfiguredPairs(t *testing.T) {
	mappings := newMemMappings()
	svc, _, _ := newMatchFixture(mappings)
	svc.cfg.Pairs = []PlatformPair{{Source: "kalshi", Target: "manifold"}}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Found != 0 {
		t.Errorf("found %d mappings on a pair with no target markets", report.Found)
	}
}

func TestMatchService_VerifyMapping(t *testing.T) {
	mappings := newMemMappings(domain.NewMapping("a", "b", 0.5))
	svc, _, audit := newMatchFixture(mappings)

	if err := svc.VerifyMapping(context.Background(), "b", "a", true); err != nil {
		t.Fatalf("VerifyMapping: %v", err)
	}
	if !mappings.rows["a|b"].ManualVerified {
		t.Error("mapping not verified")
	}
	if len(audit.events) != 1 || audit.events[0] != "mapping_verified" {
		t.Errorf("audit = %v", audit.events)
	}
	if err := svc.VerifyMapping(context.Background(), "x", "y", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParsePlatformPairs(t *testing.T) {
	pairs, err := ParsePlatformPairs([]string{"kalshi:polymarket", " manifold : azuro "})
	if err != nil {
		t.Fatalf("ParsePlatformPairs: %v", err)
	}
	want := []PlatformPair{{"kalshi", "polymarket"}, {"manifold", "azuro"}}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, pairs[i], want[i])
		}
	}
	for _, bad := range []string{"kalshi", "kalshi:", ":x", "a:a"} {
		if _, err := ParsePlatformPairs([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
