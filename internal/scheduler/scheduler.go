// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs of the portal.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names.
const (
	JobEventRetention = "event_retention"
	JobLimiterPrune   = "rate_limiter_prune"
)

// EventPruner deletes audit events older than a cutoff.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LimiterPruner drops per-client rate limiter state.
type LimiterPruner interface {
	Prune(maxSize int)
}

// Config selects the jobs to run.
type Config struct {
	// EventRetention is how long audit events are kept. Zero disables pruning.
	EventRetention time.Duration
	// LimiterMaxEntries caps the per-client limiter map before it is reset.
	LimiterMaxEntries int
}

// Scheduler handles the portal's maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	registry *Registry
	logger   *slog.Logger
	events   EventPruner
	limiter  LimiterPruner
	cfg      Config
}

// New creates a new scheduler instance. events and limiter may be nil, in
// which case the matching job is not registered.
func New(logger *slog.Logger, events EventPruner, limiter LimiterPruner, cfg Config) *Scheduler {
	c := cron.New()
	return &Scheduler{
		cron:     c,
		registry: NewRegistry(c, logger),
		logger:   logger,
		events:   events,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// Registry returns the job registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.events != nil && s.cfg.EventRetention > 0 {
		if err := s.registry.Register(JobEventRetention, "Delete audit events past the retention window", "@daily", s.pruneEvents); err != nil {
			return err
		}
	}
	if s.limiter != nil {
		if err := s.registry.Register(JobLimiterPrune, "Reset oversized rate limiter state", "*/10 * * * *", s.pruneLimiters); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) pruneEvents() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.events.DeleteOldEvents(ctx, s.cfg.EventRetention)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("pruned audit events", "deleted", deleted, "retention", s.cfg.EventRetention)
	}
	return nil
}

func (s *Scheduler) pruneLimiters() error {
	maxEntries := s.cfg.LimiterMaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	s.limiter.Prune(maxEntries)
	return nil
}
