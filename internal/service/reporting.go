package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// Alerter delivers operator notifications. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types.
const (
	EventSpreadDetected = "spread_detected"
	EventMappingCreated = "mapping_created"
	EventRunFailed      = "run_failed"
)

// reporter fans a finished pass report out to the bus, the report cache,
// the audit log and, on failure, the alerter. Every dependency is optional
// and every failure is logged and swallowed.
type reporter struct {
	bus     domain.SignalBus
	reports domain.ReportCache
	audit   domain.AuditStore
	alerts  Alerter
	logger  *slog.Logger
}

func (r reporter) publish(ctx context.Context, channel string, report domain.RunReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		r.logger.WarnContext(ctx, "reporter: marshal report failed", slog.String("error", err.Error()))
		return
	}

	if r.bus != nil {
		if err := r.bus.Publish(ctx, channel, payload); err != nil {
			r.logger.WarnContext(ctx, "reporter: publish report failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		if err := r.bus.StreamAppend(ctx, domain.StreamRuns, payload); err != nil {
			r.logger.WarnContext(ctx, "reporter: append run stream failed", slog.String("error", err.Error()))
		}
	}

	if r.reports != nil {
		if err := r.reports.SetReport(ctx, report); err != nil {
			r.logger.WarnContext(ctx, "reporter: cache report failed",
				slog.String("kind", string(report.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.audit != nil {
		if err := r.audit.Log(ctx, string(report.Kind)+"_run", map[string]any{
			"run_id":      report.RunID,
			"failed":      report.Failed,
			"markets":     report.MarketsScanned,
			"prices":      report.PricesScanned,
			"found":       report.Found,
			"written":     report.Written,
			"skipped":     report.Skipped,
			"deactivated": report.Deactivated,
			"errors":      len(report.Errors),
		}); err != nil {
			r.logger.WarnContext(ctx, "reporter: audit log failed", slog.String("error", err.Error()))
		}
	}

	if report.Failed {
		r.alert(ctx, EventRunFailed,
			fmt.Sprintf("%s pass failed", report.Kind),
			fmt.Sprintf("run %s: %s", report.RunID, strings.Join(report.Errors, "; ")),
		)
	}
}

func (r reporter) alert(ctx context.Context, event, title, message string) {
	if r.alerts == nil {
		return
	}
	if err := r.alerts.Notify(ctx, event, title, message); err != nil {
		r.logger.WarnContext(ctx, "reporter: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
