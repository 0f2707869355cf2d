// Package matching decides which markets listed on different platforms
// refer to the same real-world event.
package matching

import (
	"log/slog"
	"strings"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// ScoreFunc scores a market pair. Score is the production implementation.
type ScoreFunc func(a, b domain.Market) float64

// Matcher pairs each source market with its best-scoring target market.
type Matcher struct {
	score  ScoreFunc
	logger *slog.Logger
}

// NewMatcher creates a Matcher. A nil score function selects Score.
func NewMatcher(score ScoreFunc, logger *slog.Logger) *Matcher {
	if score == nil {
		score = Score
	}
	return &Matcher{
		score:  score,
		logger: logger.With(slog.String("component", "matcher")),
	}
}

// Match returns one mapping per source market whose best target scores at
// least threshold. Ties keep the first target seen. Markets without a title
// are skipped with a warning, and a market is never paired with a listing
// on its own platform.
func (m *Matcher) Match(source, target []domain.Market, threshold float64) []domain.Mapping {
	targets := make([]domain.Market, 0, len(target))
	for _, t := range target {
		if strings.TrimSpace(t.Title) == "" {
			m.logger.Warn("matcher: skipping target market without title",
				slog.String("market_id", t.ID),
				slog.String("platform", t.Platform),
			)
			continue
		}
		targets = append(targets, t)
	}

	var out []domain.Mapping
	for _, src := range source {
		if strings.TrimSpace(src.Title) == "" {
			m.logger.Warn("matcher: skipping source market without title",
				slog.String("market_id", src.ID),
				slog.String("platform", src.Platform),
			)
			continue
		}

		best := -1
		bestScore := 0.0
		for i, t := range targets {
			if t.Platform == src.Platform || t.ID == src.ID {
				continue
			}
			if s := m.score(src, t); best < 0 || s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 || bestScore < threshold {
			continue
		}

		out = append(out, domain.NewMapping(src.ID, targets[best].ID, bestScore))
		m.logger.Debug("matcher: matched market",
			slog.String("source", src.Title),
			slog.String("target", targets[best].Title),
			slog.Float64("score", bestScore),
		)
	}
	return out
}
