package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/matching"
)

// PlatformPair names the source and target platform of one matcher run.
type PlatformPair struct {
	Source string
	Target string
}

// ParsePlatformPairs parses "source:target" entries.
func ParsePlatformPairs(raw []string) ([]PlatformPair, error) {
	out := make([]PlatformPair, 0, len(raw))
	for _, r := range raw {
		src, tgt, ok := strings.Cut(strings.TrimSpace(r), ":")
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if !ok || src == "" || tgt == "" || src == tgt {
			return nil, fmt.Errorf("invalid platform pair %q, want source:target", r)
		}
		out = append(out, PlatformPair{Source: src, Target: tgt})
	}
	return out, nil
}

// MatchConfig holds the tunables of a matcher pass.
type MatchConfig struct {
	Threshold float64
	Pairs     []PlatformPair // empty pairs every platform with every other
	TopN      int
}

// MatchDeps are the collaborators of a MatchService. Markets and Mappings
// are required; the rest may be nil.
type MatchDeps struct {
	Markets  domain.MarketStore
	Mappings domain.MappingStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Reports  domain.ReportCache
	Archiver domain.Archiver
	Alerts   Alerter
}

// MatchService runs matcher passes and manages the mapping table.
type MatchService struct {
	deps     MatchDeps
	matcher  *matching.Matcher
	cfg      MatchConfig
	reporter reporter
	now      func() time.Time
	logger   *slog.Logger
}

// NewMatchService creates a MatchService.
func NewMatchService(deps MatchDeps, cfg MatchConfig, logger *slog.Logger) *MatchService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = matching.DefaultThreshold
	}
	logger = logger.With(slog.String("component", "match_service"))
	return &MatchService{
		deps:    deps,
		matcher: matching.NewMatcher(nil, logger),
		cfg:     cfg,
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

// Run executes one matcher pass over the active markets and upserts every
// confident mapping. Pairs already marked manual_verified are never
// rewritten. Read failures abort the pass; upsert failures are recorded in
// the report and the pass moves on.
func (s *MatchService) Run(ctx context.Context) (domain.RunReport, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		Kind:      domain.RunKindMatch,
		StartedAt: now,
	}

	markets, err := s.deps.Markets.ListActive(ctx, domain.ListOpts{})
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("match_service: list markets: %w", err))
	}
	existing, err := s.deps.Mappings.List(ctx)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("match_service: list mappings: %w", err))
	}
	report.MarketsScanned = len(markets)

	verified := make(map[string]bool, len(existing))
	for _, m := range existing {
		if m.ManualVerified {
			verified[m.Key()] = true
		}
	}

	byPlatform := make(map[string][]domain.Market)
	for _, m := range markets {
		byPlatform[m.Platform] = append(byPlatform[m.Platform], m)
	}

	seen := make(map[string]bool)
	var written []domain.Mapping
	for _, pair := range s.platformPairs(byPlatform) {
		found := s.matcher.Match(byPlatform[pair.Source], byPlatform[pair.Target], s.cfg.Threshold)
		for _, m := range found {
			key := m.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			report.Found++

			if verified[key] {
				report.Skipped++
				s.logger.DebugContext(ctx, "match_service: keeping manually verified mapping",
					slog.String("pair", key),
				)
				continue
			}

			m.UpdatedAt = now
			if err := s.deps.Mappings.Upsert(ctx, m); err != nil {
				s.logger.WarnContext(ctx, "match_service: upsert mapping failed",
					slog.String("pair", key),
					slog.String("error", err.Error()),
				)
				report.AddError(fmt.Errorf("upsert mapping %s: %w", key, err))
				continue
			}
			written = append(written, m)
		}
	}

	report.Written = len(written)
	slices.SortStableFunc(written, func(a, b domain.Mapping) int {
		return cmp.Compare(b.SimilarityScore, a.SimilarityScore)
	})
	report.TopMappings = topN(written, s.cfg.TopN)
	report.FinishedAt = s.now().UTC()

	s.logger.InfoContext(ctx, "match_service: pass complete",
		slog.String("run_id", report.RunID),
		slog.Int("markets", report.MarketsScanned),
		slog.Int("found", report.Found),
		slog.Int("written", report.Written),
		slog.Int("manual_skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)),
	)

	if s.deps.Archiver != nil && len(written) > 0 {
		if key, err := s.deps.Archiver.ArchiveMappings(ctx, report, written); err != nil {
			s.logger.WarnContext(ctx, "match_service: archive mappings failed", slog.String("error", err.Error()))
		} else {
			s.logger.DebugContext(ctx, "match_service: mappings archived", slog.String("key", key))
		}
	}
	s.reporter.publish(ctx, domain.ChannelMappings, report)
	if len(written) > 0 {
		s.reporter.alert(ctx, EventMappingCreated,
			fmt.Sprintf("%d market mappings written", len(written)),
			fmt.Sprintf("run %s scanned %d markets, best pair %s (score %.2f)",
				report.RunID, report.MarketsScanned, written[0].Key(), written[0].SimilarityScore),
		)
	}
	return report, nil
}

// VerifyMapping sets or clears the manual override on a mapping. The pair
// is normalised, so argument order does not matter.
func (s *MatchService) VerifyMapping(ctx context.Context, a, b string, verified bool) error {
	a, b = domain.OrderPair(a, b)
	if err := s.deps.Mappings.SetVerified(ctx, a, b, verified); err != nil {
		return fmt.Errorf("match_service: set verified %s: %w", domain.PairKey(a, b), err)
	}
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Log(ctx, "mapping_verified", map[string]any{
			"market_id_a": a,
			"market_id_b": b,
			"verified":    verified,
		}); err != nil {
			s.logger.WarnContext(ctx, "match_service: audit log failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "match_service: mapping verification changed",
		slog.String("pair", domain.PairKey(a, b)),
		slog.Bool("verified", verified),
	)
	return nil
}

// ListMappings returns every stored mapping.
func (s *MatchService) ListMappings(ctx context.Context) ([]domain.Mapping, error) {
	mappings, err := s.deps.Mappings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("match_service: list mappings: %w", err)
	}
	return mappings, nil
}

// platformPairs returns the configured pairs, or every unordered pair of
// platforms present with the lexically smaller one as source.
func (s *MatchService) platformPairs(byPlatform map[string][]domain.Market) []PlatformPair {
	if len(s.cfg.Pairs) > 0 {
		return s.cfg.Pairs
	}
	platforms := make([]string, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var pairs []PlatformPair
	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			pairs = append(pairs, PlatformPair{Source: platforms[i], Target: platforms[j]})
		}
	}
	return pairs
}

func (s *MatchService) fail(ctx context.Context, report domain.RunReport, err error) (domain.RunReport, error) {
	report.Failed = true
	report.AddError(err)
	report.FinishedAt = s.now().UTC()
	s.logger.ErrorContext(ctx, "match_service: pass aborted",
		slog.String("run_id", report.RunID),
		slog.String("error", err.Error()),
	)
	s.reporter.publish(ctx, domain.ChannelMappings, report)
	return report, err
}
