package domain

import (
	"math"
	"time"
)

// Price is an immutable quote snapshot for one market on one platform.
// YesPrice and NoPrice need not sum to 1 because of platform vig.
type Price struct {
	MarketID    string    `json:"market_id"`
	Platform    string    `json:"platform"`
	YesPrice    float64   `json:"yes_price"`
	NoPrice     float64   `json:"no_price"`
	Volume24h   float64   `json:"volume_24h"`
	TotalVolume float64   `json:"total_volume"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Validate rejects rows that cannot take part in a spread comparison.
func (p Price) Validate() error {
	if p.MarketID == "" || p.Platform == "" {
		return ErrInvalidPrice
	}
	if !inUnit(p.YesPrice) || !inUnit(p.NoPrice) {
		return ErrInvalidPrice
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
