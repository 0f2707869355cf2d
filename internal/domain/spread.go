package domain

import "time"

// SpreadTTL is how long a detected spread stays valid after its pass.
const SpreadTTL = 5 * time.Minute

// Side names which outcome a spread trades.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Spread is a derived, short-lived cross-platform opportunity: buy the
// outcome where it is cheap, take the opposing position where it is dear.
// SkewPercentage is always > 0 and SellPrice >= BuyPrice.
type Spread struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	MarketID        string    `json:"market_id"`
	Side            Side      `json:"side"`
	BuyPlatform     string    `json:"buy_platform"`
	SellPlatform    string    `json:"sell_platform"`
	BuyPrice        float64   `json:"buy_price"`
	SellPrice       float64   `json:"sell_price"`
	SkewPercentage  float64   `json:"skew_percentage"`
	PotentialProfit float64   `json:"potential_profit"`
	IsActive        bool      `json:"is_active"`
	DetectedAt      time.Time `json:"detected_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Stamp marks the spread active for a pass detected at now.
func (s *Spread) Stamp(runID string, now time.Time, ttl time.Duration) {
	s.RunID = runID
	s.IsActive = true
	s.DetectedAt = now
	s.ExpiresAt = now.Add(ttl)
}
