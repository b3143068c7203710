package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/metrics"
)

// jobLocker is the lease surface the service needs; nil-able for single
// replica deployments without Redis.
type jobLocker interface {
	Acquire(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope string) error
}

// Service drives the registered jobs on a fixed interval until the context
// is cancelled.
type Service struct {
	registry *Registry
	locker   jobLocker
	logger   *logger.Logger
	metrics  *metrics.SweepMetrics
	interval time.Duration
	lockTTL  time.Duration
}

type ServiceParams struct {
	Registry *Registry
	Locker   jobLocker
	Logger   *logger.Logger
	Metrics  *metrics.SweepMetrics
	Interval time.Duration
	LockTTL  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = params.Interval
	}
	return &Service{
		registry: params.Registry,
		locker:   params.Locker,
		logger:   params.Logger,
		metrics:  params.Metrics,
		interval: params.Interval,
		lockTTL:  lockTTL,
	}, nil
}

// Start blocks, running every registered job once per interval, and returns
// when ctx is cancelled. The first tick fires immediately.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(s.logger.WithField(ctx, "interval", s.interval.String()), "scheduled worker started")

	s.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduled worker stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	for _, job := range s.registry.Jobs() {
		s.runOne(ctx, job)
	}
}

func (s *Service) runOne(ctx context.Context, job Job) {
	ctx = s.logger.WithField(ctx, "job", job.Name())

	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, job.Name(), s.lockTTL)
		if err != nil {
			s.logger.Error(ctx, "acquiring job lease", err)
			s.metrics.IncFailure(job.Name())
			return
		}
		if !acquired {
			s.logger.Info(ctx, "job lease held elsewhere, skipping tick")
			return
		}
		defer func() {
			if err := s.locker.Release(ctx, job.Name()); err != nil {
				s.logger.Error(ctx, "releasing job lease", err)
			}
		}()
	}

	started := time.Now()
	err := job.Run(ctx)
	s.metrics.ObserveDuration(job.Name(), time.Since(started))
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logger.Error(ctx, "job run failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
}
