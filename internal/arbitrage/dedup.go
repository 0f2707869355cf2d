package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// dedupTolerance is the skew distance, in percentage points, under which
// two opportunities on the same platform pair count as one.
var dedupTolerance = decimal.NewFromFloat(0.1)

// isDuplicate reports whether candidate repeats an accepted opportunity:
// same buy and sell platforms with skew closer than dedupTolerance.
//
// This is a linear scan over everything accepted so far, which is fine for
// the hundreds of rows a pass sees.
func isDuplicate(candidate domain.Spread, accepted []domain.Spread) bool {
	skew := decimal.NewFromFloat(candidate.SkewPercentage)
	for _, s := range accepted {
		if s.BuyPlatform != candidate.BuyPlatform || s.SellPlatform != candidate.SellPlatform {
			continue
		}
		if skew.Sub(decimal.NewFromFloat(s.SkewPercentage)).Abs().LessThan(dedupTolerance) {
			return true
		}
	}
	return false
}
