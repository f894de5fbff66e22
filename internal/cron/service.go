package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval while holding the lock.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	var jobs []Job
	if params.Registry != nil {
		jobs = params.Registry.Jobs()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run fires a cycle immediately and then on every tick until ctx ends. Cycle
// failures are logged; they never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. Every job runs even when an earlier one fails; the
// returned error combines the failures.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	if !acquired {
		s.logg.Info(ctx, "cron lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		// release even when the cycle ctx was canceled mid-run
		releaseCtx := context.WithoutCancel(ctx)
		err = multierr.Append(err, s.lock.Release(releaseCtx))
	}()

	started := s.now()
	for _, job := range s.jobs {
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithFields(ctx, logger.Fields{
		"jobs":        len(s.jobs),
		"failed":      len(multierr.Errors(err)),
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}), "cron cycle complete")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	started := s.now()
	result, err := job.Run(ctx)
	took := s.now().Sub(started)

	s.metrics.ObserveRun(name, took, err)
	ctx = s.logg.WithFields(ctx, logger.Fields{
		"duration_ms": took.Milliseconds(),
		"affected":    result.Affected,
	})
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.AddAffected(name, result.Affected)
	s.logg.Info(ctx, "cron job complete")
	return nil
}
