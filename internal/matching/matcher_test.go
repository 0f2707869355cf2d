package matching

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMatcher_PicksBestTargetAboveThreshold(t *testing.T) {
	source := []domain.Market{
		{ID: "k1", Platform: "kalshi", Title: "Trump wins 2024 election", Category: domain.CategoryPolitics, ResolutionDate: date(0)},
		{ID: "k2", Platform: "kalshi", Title: "Lakers win NBA Finals", Category: domain.CategorySports},
	}
	target := []domain.Market{
		{ID: "p1", Platform: "polymarket", Title: "Will Bitcoin hit $150k?", Category: domain.CategoryCrypto},
		{ID: "p2", Platform: "polymarket", Title: "Will Trump win the 2024 Presidential Election?", Category: domain.CategoryPolitics, ResolutionDate: date(1)},
		{ID: "p3", Platform: "polymarket", Title: "Harris wins 2024 election", Category: domain.CategoryPolitics, ResolutionDate: date(0)},
	}

	got := NewMatcher(nil, testLogger()).Match(source, target, DefaultThreshold)
	if len(got) != 1 {
		t.Fatalf("expected 1 mapping, got %d: %+v", len(got), got)
	}
	if got[0].Key() != domain.PairKey("k1", "p2") {
		t.Errorf("mapping pair = %s, want k1|p2", got[0].Key())
	}
	if got[0].MarketIDA != "k1" || got[0].MarketIDB != "p2" {
		t.Errorf("pair not normalised: %+v", got[0])
	}
}

func TestMatcher_TiesKeepFirstTarget(t *testing.T) {
	constant := func(a, b domain.Market) float64 { return 0.5 }
	source := []domain.Market{{ID: "s", Platform: "kalshi", Title: "anything"}}
	target := []domain.Market{
		{ID: "t1", Platform: "manifold", Title: "first"},
		{ID: "t2", Platform: "manifold", Title: "second"},
	}

	got := NewMatcher(constant, testLogger()).Match(source, target, 0.4)
	if len(got) != 1 || got[0].Key() != domain.PairKey("s", "t1") {
		t.Fatalf("expected tie to resolve to t1, got %+v", got)
	}
}

func TestMatcher_SkipsMalformedAndSamePlatform(t *testing.T) {
	constant := func(a, b domain.Market) float64 { return 0.9 }
	source := []domain.Market{
		{ID: "s1", Platform: "kalshi", Title: ""},
		{ID: "s2", Platform: "kalshi", Title: "valid"},
	}
	target := []domain.Market{
		{ID: "t0", Platform: "polymarket", Title: "   "},
		{ID: "t1", Platform: "kalshi", Title: "same platform"},
	}

	if got := NewMatcher(constant, testLogger()).Match(source, target, 0.4); len(got) != 0 {
		t.Fatalf("expected no mappings, got %+v", got)
	}
}

func TestMatcher_BelowThresholdSkipped(t *testing.T) {
	low := func(a, b domain.Market) float64 { return 0.39 }
	source := []domain.Market{{ID: "s", Platform: "kalshi", Title: "x"}}
	target := []domain.Market{{ID: "t", Platform: "azuro", Title: "y"}}

	if got := NewMatcher(low, testLogger()).Match(source, target, 0.4); len(got) != 0 {
		t.Fatalf("expected no mappings, got %+v", got)
	}
}

func TestMatcher_Idempotent(t *testing.T) {
	source := []domain.Market{
		{ID: "k1", Platform: "kalshi", Title: "Fed cuts rates in December", Category: domain.CategoryEconomics},
		{ID: "k2", Platform: "kalshi", Title: "Chiefs win Super Bowl", Category: domain.CategorySports},
	}
	target := []domain.Market{
		{ID: "m1", Platform: "manifold", Title: "Will the Fed cut rates in December?", Category: domain.CategoryEconomics},
		{ID: "m2", Platform: "manifold", Title: "Kansas City Chiefs win the Super Bowl?", Category: domain.CategorySports},
	}
	m := NewMatcher(nil, testLogger())
	first := m.Match(source, target, DefaultThreshold)
	second := m.Match(source, target, DefaultThreshold)
	if len(first) != len(second) || len(first) != 2 {
		t.Fatalf("expected 2 stable mappings, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("mapping %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}
