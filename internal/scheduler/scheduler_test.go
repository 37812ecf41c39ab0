package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
	"github.com/olegiv/svcportal/internal/testutil"
)

type fakePruner struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (f *fakePruner) DeleteOldEvents(_ context.Context, olderThan time.Duration) (int64, error) {
	f.calls++
	f.olderThan = olderThan
	return 3, f.err
}

type fakeLimiter struct{ maxSize int }

func (f *fakeLimiter) Prune(maxSize int) { f.maxSize = maxSize }

func TestScheduler_StartStop(t *testing.T) {
	s := New(testutil.TestLoggerSilent(), &fakePruner{}, &fakeLimiter{}, Config{EventRetention: 24 * time.Hour})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	jobs := s.Registry().List()
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[0].Name != JobEventRetention || jobs[1].Name != JobLimiterPrune {
		t.Errorf("job names = %q, %q", jobs[0].Name, jobs[1].Name)
	}
	if jobs[0].NextRun.IsZero() {
		t.Error("expected next run to be scheduled")
	}
}

func TestScheduler_RetentionDisabled(t *testing.T) {
	s := New(testutil.TestLoggerSilent(), &fakePruner{}, nil, Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if jobs := s.Registry().List(); len(jobs) != 0 {
		t.Errorf("jobs = %v, want none", jobs)
	}
}

func TestScheduler_TriggerJobs(t *testing.T) {
	pruner := &fakePruner{}
	limiter := &fakeLimiter{}
	s := New(testutil.TestLoggerSilent(), pruner, limiter, Config{EventRetention: 48 * time.Hour, LimiterMaxEntries: 50})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Registry().TriggerNow(JobEventRetention); err != nil {
		t.Fatalf("TriggerNow(retention) error = %v", err)
	}
	if pruner.calls != 1 || pruner.olderThan != 48*time.Hour {
		t.Errorf("pruner calls = %d, olderThan = %v", pruner.calls, pruner.olderThan)
	}

	if err := s.Registry().TriggerNow(JobLimiterPrune); err != nil {
		t.Fatalf("TriggerNow(limiter) error = %v", err)
	}
	if limiter.maxSize != 50 {
		t.Errorf("limiter maxSize = %d, want 50", limiter.maxSize)
	}

	if err := s.Registry().TriggerNow("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("TriggerNow(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestScheduler_TriggerPropagatesError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("disk full")}
	s := New(testutil.TestLoggerSilent(), pruner, nil, Config{EventRetention: time.Hour})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Registry().TriggerNow(JobEventRetention); err == nil {
		t.Error("expected pruner error")
	}
}

func TestRegistry_Register(t *testing.T) {
	s := New(testutil.TestLoggerSilent(), nil, nil, Config{})
	r := s.Registry()

	if err := r.Register("ok", "", "@hourly", func() error { return nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("ok", "", "@hourly", func() error { return nil }); err == nil {
		t.Error("expected duplicate registration error")
	}
	if err := r.Register("bad", "", "not a schedule", func() error { return nil }); err == nil {
		t.Error("expected invalid schedule error")
	}
}

func TestScheduler_PrunesRealEvents(t *testing.T) {
	db := testutil.TestDB(t)
	events := service.NewEventService(db)
	ctx := context.Background()

	if err := events.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "old", nil, "", nil); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if _, err := db.Exec("UPDATE events SET created_at = ?", time.Now().UTC().Add(-72*time.Hour)); err != nil {
		t.Fatalf("aging event: %v", err)
	}
	if err := events.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "fresh", nil, "", nil); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	s := New(testutil.TestLoggerSilent(), events, nil, Config{EventRetention: 24 * time.Hour})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Registry().TriggerNow(JobEventRetention); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}

	left, err := events.ListEvents(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(left) != 1 || left[0].Message != "fresh" {
		t.Errorf("remaining events = %+v, want only the fresh one", left)
	}
}
