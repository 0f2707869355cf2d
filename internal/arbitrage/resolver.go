package arbitrage

import "github.com/alanyoungcy/skewscan/internal/domain"

// LatestByPlatform reduces prices to the most recent row per platform.
// A later RecordedAt always replaces an earlier one. Rows with the exact
// same timestamp are ordered by MarketID, then YesPrice, then NoPrice, and
// the lowest wins, so the result never depends on input order.
func LatestByPlatform(prices []domain.Price) map[string]domain.Price {
	latest := make(map[string]domain.Price)
	for _, p := range prices {
		cur, ok := latest[p.Platform]
		if !ok || supersedes(p, cur) {
			latest[p.Platform] = p
		}
	}
	return latest
}

func supersedes(p, cur domain.Price) bool {
	if !p.RecordedAt.Equal(cur.RecordedAt) {
		return p.RecordedAt.After(cur.RecordedAt)
	}
	if p.MarketID != cur.MarketID {
		return p.MarketID < cur.MarketID
	}
	if p.YesPrice != cur.YesPrice {
		return p.YesPrice < cur.YesPrice
	}
	return p.NoPrice < cur.NoPrice
}
