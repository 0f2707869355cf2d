package domain

import "time"

// Mapping records that two markets on different platforms are believed to
// denote the same event. IDs are stored ordered so MarketIDA < MarketIDB.
type Mapping struct {
	MarketIDA       string    `json:"market_id_a"`
	MarketIDB       string    `json:"market_id_b"`
	SimilarityScore float64   `json:"similarity_score"`
	ManualVerified  bool      `json:"manual_verified"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewMapping builds a mapping with the pair normalised.
func NewMapping(a, b string, score float64) Mapping {
	a, b = OrderPair(a, b)
	return Mapping{MarketIDA: a, MarketIDB: b, SimilarityScore: score}
}

// OrderPair returns the two ids in lexical order.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey is the order-independent key of a market pair.
func PairKey(a, b string) string {
	a, b = OrderPair(a, b)
	return a + "|" + b
}

// Key returns the pair key of the mapping.
func (m Mapping) Key() string {
	return PairKey(m.MarketIDA, m.MarketIDB)
}
