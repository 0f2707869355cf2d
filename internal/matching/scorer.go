package matching

import (
	"math"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

const (
	jaccardWeight  = 0.5
	coverageWeight = 0.3
	salientBonus   = 0.15
	categoryBonus  = 0.1
	dateNearBonus  = 0.1
	dateFarBonus   = 0.05
	dateNearWindow = 7 * 24 * time.Hour
	dateFarWindow  = 30 * 24 * time.Hour
)

// DefaultThreshold is the minimum score for the matcher to emit a mapping.
const DefaultThreshold = 0.4

// Score returns a confidence in [0,1] that a and b denote the same event.
// It is symmetric and never fails; titles outside the curated keyword list
// are scored on token overlap, category and date alone.
func Score(a, b domain.Market) float64 {
	ka, kb := Keywords(a.Title), Keywords(b.Title)

	score := math.Min(jaccard(ka, kb), 1) * jaccardWeight
	score += math.Min(coverage(ka, kb), 1) * coverageWeight
	score += salientMatches(a.Title, b.Title) * salientBonus

	if a.Category != "" && a.Category == b.Category {
		score += categoryBonus
	}
	score += dateBonus(a.ResolutionDate, b.ResolutionDate)

	return math.Min(score, 1)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func coverage(a, b map[string]struct{}) float64 {
	denom := max(len(a), len(b), 1)
	return float64(intersection(a, b)) / float64(denom)
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func salientMatches(titleA, titleB string) float64 {
	na, nb := normalize(titleA), normalize(titleB)
	n := 0
	for _, term := range salientTerms {
		if containsTerm(na, term) && containsTerm(nb, term) {
			n++
		}
	}
	return float64(n)
}

func dateBonus(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= dateNearWindow:
		return dateNearBonus
	case diff <= dateFarWindow:
		return dateFarBonus
	default:
		return 0
	}
}
