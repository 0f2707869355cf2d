package handler

import (
	"net/http"
	"time"
)

// StatusInfo is the static runtime summary served by /api/status.
type StatusInfo struct {
	Mode             string        `json:"mode"`
	Threshold        float64       `json:"matcher_threshold"`
	MinSkewPercent   float64       `json:"min_skew_percent"`
	MatchInterval    time.Duration `json:"-"`
	SpreadInterval   time.Duration `json:"-"`
	SchedulerEnabled bool          `json:"scheduler_enabled"`
	RedisEnabled     bool          `json:"redis_enabled"`
	ArchiveEnabled   bool          `json:"archive_enabled"`
	StartedAt        time.Time     `json:"started_at"`
}

// StatusHandler serves the runtime summary.
type StatusHandler struct {
	info StatusInfo
	now  func() time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info StatusInfo) *StatusHandler {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	return &StatusHandler{info: info, now: time.Now}
}

// GetStatus responds with the mode, thresholds, intervals and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		StatusInfo
		MatchInterval  string `json:"match_interval"`
		SpreadInterval string `json:"spread_interval"`
		UptimeSeconds  int64  `json:"uptime_seconds"`
	}{
		StatusInfo:     h.info,
		MatchInterval:  h.info.MatchInterval.String(),
		SpreadInterval: h.info.SpreadInterval.String(),
		UptimeSeconds:  int64(h.now().Sub(h.info.StartedAt).Seconds()),
	})
}
