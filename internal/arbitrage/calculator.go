// Package arbitrage turns the latest cross-platform quotes of one event into
// buy-low/sell-high skew opportunities.
package arbitrage

import (
	"cmp"
	"log/slog"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// DefaultMinSkewPercent is the skew an opportunity must exceed to be kept.
const DefaultMinSkewPercent = 1.0

var hundred = decimal.NewFromInt(100)

// Result is the output of one calculator pass.
type Result struct {
	Spreads       []domain.Spread
	Groups        int // groups quoted on at least two platforms
	PairsCompared int
	Duplicates    int
	Malformed     int
	Inactive      int // quotes for markets outside the active set
}

// Calculator computes spreads from a price snapshot.
type Calculator struct {
	minSkew float64
	logger  *slog.Logger
}

// NewCalculator creates a Calculator keeping spreads whose skew is strictly
// above minSkewPercent.
func NewCalculator(minSkewPercent float64, logger *slog.Logger) *Calculator {
	return &Calculator{
		minSkew: minSkewPercent,
		logger:  logger.With(slog.String("component", "spread_calculator")),
	}
}

// ComputeSpreads runs a calculator pass without mappings, grouping by exact
// market id and by title key only. Only prices of markets in markets are
// considered.
func ComputeSpreads(prices []domain.Price, markets []domain.Market, minSkewPercent float64) []domain.Spread {
	return NewCalculator(minSkewPercent, slog.New(slog.DiscardHandler)).Compute(prices, markets, nil).Spreads
}

// Compute groups prices into events, compares every platform pair in each
// group on both the YES and NO side, and returns the surviving
// opportunities sorted by skew, highest first. Spreads come back without
// ID, RunID or timestamps; the caller stamps them when persisting.
//
// markets is the active market set. Quotes for any other market, and
// markets that are resolved or suspended, take no part in grouping.
func (c *Calculator) Compute(prices []domain.Price, markets []domain.Market, mappings []domain.Mapping) Result {
	var res Result

	active := make([]domain.Market, 0, len(markets))
	activeIDs := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		if m.Status == domain.MarketStatusResolved || m.Status == domain.MarketStatusSuspended {
			continue
		}
		active = append(active, m)
		activeIDs[m.ID] = struct{}{}
	}

	valid := make([]domain.Price, 0, len(prices))
	for _, p := range prices {
		if _, ok := activeIDs[p.MarketID]; !ok {
			res.Inactive++
			c.logger.Debug("spread_calculator: skipping quote for inactive market",
				slog.String("market_id", p.MarketID),
				slog.String("platform", p.Platform),
			)
			continue
		}
		if err := p.Validate(); err != nil {
			res.Malformed++
			c.logger.Warn("spread_calculator: skipping malformed price",
				slog.String("market_id", p.MarketID),
				slog.String("platform", p.Platform),
				slog.String("error", err.Error()),
			)
			continue
		}
		valid = append(valid, p)
	}

	for _, g := range buildGroups(valid, active, mappings) {
		if g.source == groupMapping {
			c.logMergedListings(g)
		}
		latest := LatestByPlatform(g.prices)
		if len(latest) < 2 {
			continue
		}
		res.Groups++

		platforms := make([]string, 0, len(latest))
		for p := range latest {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)

		for i := 0; i < len(platforms); i++ {
			for j := i + 1; j < len(platforms); j++ {
				res.PairsCompared++
				a, b := latest[platforms[i]], latest[platforms[j]]
				for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
					s, ok := opportunity(a, b, side)
					if !ok || s.SkewPercentage <= c.minSkew {
						continue
					}
					if g.source != groupExactID && isDuplicate(s, res.Spreads) {
						res.Duplicates++
						c.logger.Debug("spread_calculator: skipping near-duplicate",
							slog.String("group", g.source.String()),
							slog.String("key", g.key),
							slog.String("buy_platform", s.BuyPlatform),
							slog.String("sell_platform", s.SellPlatform),
							slog.Float64("skew", s.SkewPercentage),
						)
						continue
					}
					res.Spreads = append(res.Spreads, s)
				}
			}
		}
	}

	slices.SortStableFunc(res.Spreads, func(x, y domain.Spread) int {
		if d := cmp.Compare(y.SkewPercentage, x.SkewPercentage); d != 0 {
			return d
		}
		if d := cmp.Compare(x.MarketID, y.MarketID); d != 0 {
			return d
		}
		return cmp.Compare(x.Side, y.Side)
	})
	return res
}

// logMergedListings reports mapping components that hold more than one
// market on the same platform. Only the newest of those quotes survives
// LatestByPlatform.
func (c *Calculator) logMergedListings(g priceGroup) {
	ids := make(map[string]map[string]struct{})
	for _, p := range g.prices {
		if ids[p.Platform] == nil {
			ids[p.Platform] = make(map[string]struct{})
		}
		ids[p.Platform][p.MarketID] = struct{}{}
	}
	for platform, set := range ids {
		if len(set) < 2 {
			continue
		}
		marketIDs := make([]string, 0, len(set))
		for id := range set {
			marketIDs = append(marketIDs, id)
		}
		sort.Strings(marketIDs)
		c.logger.Debug("spread_calculator: mapping component merges listings",
			slog.String("component", g.key),
			slog.String("platform", platform),
			slog.Any("market_ids", marketIDs),
		)
	}
}

// opportunity compares two quotes on one side. It buys where the outcome is
// cheaper and sells where it is dearer. ok is false when the quotes are
// equal, the buy price is zero, or the rounded skew is not positive.
func opportunity(a, b domain.Price, side domain.Side) (domain.Spread, bool) {
	pa, pb := sidePrice(a, side), sidePrice(b, side)
	buy, sell := a, b
	buyPrice, sellPrice := pa, pb
	if pb < pa {
		buy, sell = b, a
		buyPrice, sellPrice = pb, pa
	}
	if buyPrice <= 0 || sellPrice <= buyPrice {
		return domain.Spread{}, false
	}

	bp, sp := decimal.NewFromFloat(buyPrice), decimal.NewFromFloat(sellPrice)
	diff := sp.Sub(bp)
	skew := diff.Div(bp).Mul(hundred).Round(2)
	if !skew.IsPositive() {
		return domain.Spread{}, false
	}
	profit := diff.Mul(hundred).Round(2)

	return domain.Spread{
		MarketID:        buy.MarketID,
		Side:            side,
		BuyPlatform:     buy.Platform,
		SellPlatform:    sell.Platform,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		SkewPercentage:  skew.InexactFloat64(),
		PotentialProfit: profit.InexactFloat64(),
	}, true
}

func sidePrice(p domain.Price, side domain.Side) float64 {
	if side == domain.SideNo {
		return p.NoPrice
	}
	return p.YesPrice
}
