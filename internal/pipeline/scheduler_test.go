package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

type signalRunner struct {
	ran chan struct{}
	err error
}

func newSignalRunner(err error) *signalRunner {
	return &signalRunner{ran: make(chan struct{}, 16), err: err}
}

func (r *signalRunner) Run(context.Context) (domain.RunReport, error) {
	r.ran <- struct{}{}
	return domain.RunReport{RunID: "r"}, r.err
}

func (r *signalRunner) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not run")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

func TestScheduler_TriggerRunsJob(t *testing.T) {
	r := newSignalRunner(nil)
	s := NewScheduler(testLogger(), Job{Name: JobSpread, Runner: r})
	startScheduler(t, s)

	if err := s.Trigger(JobSpread); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	r.wait(t)
}

func TestScheduler_IntervalAndRunOnStart(t *testing.T) {
	r := newSignalRunner(nil)
	s := NewScheduler(testLogger(), Job{Name: JobMatch, Runner: r, Interval: 10 * time.Millisecond, RunOnStart: true})
	startScheduler(t, s)

	r.wait(t)
	r.wait(t)
}

func TestScheduler_ChainsAfterSuccess(t *testing.T) {
	match := newSignalRunner(nil)
	spread := newSignalRunner(nil)
	s := NewScheduler(testLogger(),
		Job{Name: JobMatch, Runner: match, Then: JobSpread},
		Job{Name: JobSpread, Runner: spread},
	)
	startScheduler(t, s)

	if err := s.Trigger(JobMatch); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	match.wait(t)
	spread.wait(t)
}

func TestScheduler_FailedPassDoesNotChain(t *testing.T) {
	match := newSignalRunner(errors.New("read markets"))
	spread := newSignalRunner(nil)
	s := NewScheduler(testLogger(),
		Job{Name: JobMatch, Runner: match, Then: JobSpread},
		Job{Name: JobSpread, Runner: spread},
	)
	startScheduler(t, s)

	_ = s.Trigger(JobMatch)
	match.wait(t)
	_ = s.Trigger(JobMatch)
	match.wait(t)

	select {
	case <-spread.ran:
		t.Fatal("spread ran after failed match pass")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_TriggerUnknown(t *testing.T) {
	s := NewScheduler(testLogger())
	if err := s.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("err = %v, want ErrUnknownJob", err)
	}
}

func TestScheduler_TriggersCoalesce(t *testing.T) {
	s := NewScheduler(testLogger(), Job{Name: JobSpread, Runner: newSignalRunner(nil)})
	for range 3 {
		if err := s.Trigger(JobSpread); err != nil {
			t.Fatalf("Trigger: %v", err)
		}
	}
	if n := len(s.jobs[JobSpread].trigger); n != 1 {
		t.Errorf("queued triggers = %d, want 1", n)
	}
}
