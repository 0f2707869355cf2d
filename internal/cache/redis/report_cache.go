package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// DefaultReportTTL bounds how long a pass report is served after the last
// pass wrote it.
const DefaultReportTTL = 24 * time.Hour

// ReportCache implements domain.ReportCache. Each pass kind keeps only its
// latest report as a JSON string:
//
//	{prefix}report:{kind}
type ReportCache struct {
	client *Client
	ttl    time.Duration
}

// NewReportCache creates a ReportCache. A non-positive ttl selects
// DefaultReportTTL.
func NewReportCache(c *Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{client: c, ttl: ttl}
}

// SetReport replaces the cached report for report.Kind.
func (rc *ReportCache) SetReport(ctx context.Context, report domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redis: marshal %s report: %w", report.Kind, err)
	}
	if err := rc.client.rdb.Set(ctx, rc.client.Key("report", string(report.Kind)), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s report: %w", report.Kind, err)
	}
	return nil
}

// GetReport returns the latest report for kind, or domain.ErrNotFound.
func (rc *ReportCache) GetReport(ctx context.Context, kind domain.RunKind) (domain.RunReport, error) {
	data, err := rc.client.rdb.Get(ctx, rc.client.Key("report", string(kind))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RunReport{}, domain.ErrNotFound
		}
		return domain.RunReport{}, fmt.Errorf("redis: get %s report: %w", kind, err)
	}
	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.RunReport{}, fmt.Errorf("redis: unmarshal %s report: %w", kind, err)
	}
	return report, nil
}

var _ domain.ReportCache = (*ReportCache)(nil)
