package domain

import (
	"strings"
	"time"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusSuspended MarketStatus = "suspended"
)

// Category is the fixed event taxonomy shared by every platform.
type Category string

const (
	CategoryCrypto        Category = "crypto"
	CategoryPolitics      Category = "politics"
	CategorySports        Category = "sports"
	CategoryEconomics     Category = "economics"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// ParseCategory maps free text onto the taxonomy. Unknown values become
// CategoryOther.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryCrypto, CategoryPolitics, CategorySports, CategoryEconomics, CategoryEntertainment:
		return c
	default:
		return CategoryOther
	}
}

// Market is one platform-specific listing of a binary event. The same
// real-world event quoted on two platforms is two Market rows.
type Market struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Category       Category     `json:"category"`
	Platform       string       `json:"platform"`
	ResolutionDate *time.Time   `json:"resolution_date,omitempty"`
	Status         MarketStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Validate reports whether the market carries enough data to be matched.
func (m Market) Validate() error {
	if m.ID == "" || strings.TrimSpace(m.Title) == "" || m.Platform == "" {
		return ErrInvalidMarket
	}
	return nil
}
