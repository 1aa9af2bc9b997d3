// internal/workflow/scheduler.go
package workflow

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
	"github.com/listforge/listforge/internal/observability"
)

// RetryScheduler periodically sweeps failed submissions that still have
// retry budget and re-runs them through the manager. One scheduler per
// process; Start and Stop are both idempotent.
type RetryScheduler struct {
	repo    schemas.Repository
	manager *Manager
	cfg     config.WorkflowConfig
	logger  *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	now func() time.Time
}

func NewRetryScheduler(repo schemas.Repository, manager *Manager, cfg config.WorkflowConfig) *RetryScheduler {
	return &RetryScheduler{
		repo:    repo,
		manager: manager,
		cfg:     cfg,
		logger:  observability.GetLogger().Named("retry_scheduler"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
	}
}

// Start launches the sweep loop. Subsequent calls are no-ops.
func (s *RetryScheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.loop(ctx)
		s.logger.Info("Retry scheduler started.",
			zap.Duration("interval", s.cfg.RetryInterval),
			zap.Duration("delay", s.cfg.RetryDelay))
	})
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *RetryScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started.Load() {
			<-s.doneCh
		}
		s.logger.Info("Retry scheduler stopped.")
	})
}

func (s *RetryScheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the retryable records. Each record is retried
// independently: an error or panic on one never stops the rest of the pass.
func (s *RetryScheduler) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during retry sweep.",
				zap.Any("panic_reason", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	subs, err := s.repo.ListRetryable(ctx, s.now(), s.cfg.RetryDelay)
	if err != nil {
		s.logger.Error("Failed to list retryable submissions.", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	s.logger.Info("Retry sweep starting.", zap.Int("candidates", len(subs)))
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		s.retryOne(ctx, sub)
	}
}

func (s *RetryScheduler) retryOne(ctx context.Context, sub *schemas.Submission) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while retrying submission.",
				zap.Int64("submission_id", sub.ID),
				zap.Any("panic_reason", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	result, err := s.manager.Retry(ctx, sub)
	if err != nil {
		s.logger.Warn("Retry attempt could not run.",
			zap.Int64("submission_id", sub.ID), zap.Error(err))
		return
	}

	s.logger.Info("Retry attempt finished.",
		zap.Int64("submission_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.Int("retry_count", result.RetryCount))
}
