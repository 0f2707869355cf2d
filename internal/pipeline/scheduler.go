// Package pipeline runs the matcher and spread passes in-process, on fixed
// intervals and on demand.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// Job names used by the app and the API.
const (
	JobMatch  = "match"
	JobSpread = "spread"
)

// ErrUnknownJob is returned by Trigger for a name that was never registered.
var ErrUnknownJob = errors.New("pipeline: unknown job")

// Runner executes one pass.
type Runner interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Job describes one scheduled pass. A zero Interval disables the ticker;
// the job still runs when triggered. Then names a job to trigger after a
// successful pass.
type Job struct {
	Name       string
	Runner     Runner
	Interval   time.Duration
	RunOnStart bool
	Then       string
}

type jobState struct {
	Job
	trigger chan struct{}
}

// Scheduler drives a fixed set of jobs until its context ends.
type Scheduler struct {
	jobs   map[string]*jobState
	order  []string
	logger *slog.Logger
}

// NewScheduler registers jobs. Duplicate names keep the last definition.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*jobState, len(jobs)),
		logger: logger.With(slog.String("component", "scheduler")),
	}
	for _, j := range jobs {
		if _, ok := s.jobs[j.Name]; !ok {
			s.order = append(s.order, j.Name)
		}
		s.jobs[j.Name] = &jobState{Job: j, trigger: make(chan struct{}, 1)}
	}
	return s
}

// Trigger queues one run of the named job. Triggers arriving while one is
// already queued coalesce into it.
func (s *Scheduler) Trigger(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	select {
	case j.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Run starts one loop per job and blocks until ctx is cancelled. Pass
// failures are logged and never stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		j := s.jobs[name]
		s.logger.Info("scheduler: starting job",
			slog.String("job", j.Name),
			slog.Duration("interval", j.Interval),
		)
		g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("scheduler: stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, j *jobState) {
	var tick <-chan time.Time
	if j.Interval > 0 {
		ticker := time.NewTicker(j.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	if j.RunOnStart {
		s.runOnce(ctx, j, "start")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.runOnce(ctx, j, "interval")
		case <-j.trigger:
			s.runOnce(ctx, j, "trigger")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j *jobState, cause string) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	report, err := j.Runner.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.DebugContext(ctx, "scheduler: pass already running", slog.String("job", j.Name))
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "scheduler: pass failed",
			slog.String("job", j.Name),
			slog.String("cause", cause),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "scheduler: pass complete",
		slog.String("job", j.Name),
		slog.String("cause", cause),
		slog.String("run_id", report.RunID),
		slog.Int("written", report.Written),
		slog.Duration("took", time.Since(started)),
	)
	if j.Then != "" {
		if err := s.Trigger(j.Then); err != nil {
			s.logger.WarnContext(ctx, "scheduler: chain trigger failed",
				slog.String("job", j.Name),
				slog.String("then", j.Then),
				slog.String("error", err.Error()),
			)
		}
	}
}
