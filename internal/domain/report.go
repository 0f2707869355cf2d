package domain

import "time"

// RunKind identifies which batch pass produced a report.
type RunKind string

const (
	RunKindMatch  RunKind = "match"
	RunKindSpread RunKind = "spread"
)

// RunReport summarises one batch pass. Errors holds per-row failures that
// did not abort the pass.
type RunReport struct {
	RunID          string    `json:"run_id"`
	Kind           RunKind   `json:"kind"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	MarketsScanned int       `json:"markets_scanned"`
	PricesScanned  int       `json:"prices_scanned"`
	Found          int       `json:"found"`
	Written        int       `json:"written"`
	Skipped        int       `json:"skipped"`
	Deactivated    int64     `json:"deactivated"`
	Errors         []string  `json:"errors,omitempty"`
	TopSpreads     []Spread  `json:"top_spreads,omitempty"`
	TopMappings    []Mapping `json:"top_mappings,omitempty"`
	Failed         bool      `json:"failed"`
}

// AddError appends a non-fatal failure to the report.
func (r *RunReport) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Signal bus channels and streams carrying pass reports.
const (
	ChannelSpreads  = "skewscan:spreads"
	ChannelMappings = "skewscan:mappings"
	StreamRuns      = "skewscan:runs"
)
