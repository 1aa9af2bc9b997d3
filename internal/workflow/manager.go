// Package workflow coordinates submission attempts: single submissions,
// bounded-concurrency bulk runs, and the periodic retry sweep over failed
// records with budget remaining.
package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
	"github.com/listforge/listforge/internal/observability"
)

// Manager owns the submission lifecycle around an executor: it creates the
// pending record, hands it to the executor, and persists the terminal
// outcome and directory counters.
type Manager struct {
	repo     schemas.Repository
	executor schemas.SubmissionExecutor
	cfg      config.WorkflowConfig
	logger   *zap.Logger

	now func() time.Time
}

func NewManager(repo schemas.Repository, executor schemas.SubmissionExecutor, cfg config.WorkflowConfig) *Manager {
	return &Manager{
		repo:     repo,
		executor: executor,
		cfg:      cfg,
		logger:   observability.GetLogger().Named("workflow"),
		now:      time.Now,
	}
}

// SubmitToDirectory runs one submission attempt end to end. Errors are
// returned only for failures that precede record creation (unknown product
// or directory, directory not accepting submissions); once a record exists,
// every outcome is persisted on it and returned with a nil error.
func (m *Manager) SubmitToDirectory(ctx context.Context, productID, directoryID int64) (*schemas.Submission, error) {
	product, err := m.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	directory, err := m.repo.GetDirectory(ctx, directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory %d: %w", directoryID, err)
	}
	if directory.Status == schemas.DirectoryInactive {
		return nil, fmt.Errorf("directory %q is not accepting submissions", directory.Name)
	}

	now := m.now()
	sub := &schemas.Submission{
		OwnerID:     product.OwnerID,
		ProductID:   productID,
		DirectoryID: directoryID,
		Status:      schemas.SubmissionPending,
		MaxRetries:  m.cfg.MaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission record: %w", err)
	}

	return m.runAttempt(ctx, sub, product, directory), nil
}

// runAttempt executes one attempt against an existing record and persists
// the terminal state. Persistence failures are logged, never surfaced: the
// attempt already happened and the in-memory record is the truth we return.
func (m *Manager) runAttempt(ctx context.Context, sub *schemas.Submission, product *schemas.Product, directory *schemas.Directory) *schemas.Submission {
	result, err := m.executor.Execute(ctx, sub, product, directory)
	if err != nil {
		// Executors record attempt-level failures themselves; an error here
		// means the attempt never got off the ground.
		sub.Status = schemas.SubmissionFailed
		sub.ResponseMessage = err.Error()
		sub.AppendError(m.now(), err.Error())
		result = sub
	}

	result.UpdatedAt = m.now()
	if err := m.repo.UpdateSubmission(ctx, result); err != nil {
		m.logger.Error("Failed to persist submission outcome.",
			zap.Int64("submission_id", result.ID), zap.Error(err))
	}

	success := result.Status == schemas.SubmissionSubmitted
	if err := m.repo.RecordAttempt(ctx, directory.ID, success); err != nil {
		m.logger.Error("Failed to update directory counters.",
			zap.Int64("directory_id", directory.ID), zap.Error(err))
	}
	return result
}

// BulkSubmit submits one product to many directories with at most
// cfg.ConcurrentSubmissions attempts in flight. One attempt's failure, or
// even panic, never disturbs its siblings; attempts that errored before a
// record existed are dropped from the result. Order of the returned records
// is not defined.
func (m *Manager) BulkSubmit(ctx context.Context, productID int64, directoryIDs []int64) ([]*schemas.Submission, error) {
	// Fail fast on an unknown product instead of erroring N times.
	if _, err := m.repo.GetProduct(ctx, productID); err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	limit := int64(m.cfg.ConcurrentSubmissions)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu      sync.Mutex
		results []*schemas.Submission
		wg      sync.WaitGroup
	)

	for _, directoryID := range directoryIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			m.logger.Warn("Bulk run canceled before all attempts started.", zap.Error(err))
			break
		}

		wg.Add(1)
		go func(directoryID int64) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("Panic during bulk submission attempt.",
						zap.Int64("directory_id", directoryID),
						zap.Any("panic_reason", r),
						zap.String("stack", string(debug.Stack())))
				}
			}()

			sub, err := m.SubmitToDirectory(ctx, productID, directoryID)
			if err != nil {
				m.logger.Warn("Bulk attempt skipped.",
					zap.Int64("directory_id", directoryID), zap.Error(err))
				return
			}

			mu.Lock()
			results = append(results, sub)
			mu.Unlock()
		}(directoryID)
	}

	wg.Wait()
	m.logger.Info("Bulk submission run finished.",
		zap.Int64("product_id", productID),
		zap.Int("requested", len(directoryIDs)),
		zap.Int("attempted", len(results)))
	return results, nil
}

// Retry re-runs a failed submission in place, consuming one unit of its
// retry budget. The caller is expected to have checked eligibility; Retry
// still refuses records that are out of budget or not failed.
func (m *Manager) Retry(ctx context.Context, sub *schemas.Submission) (*schemas.Submission, error) {
	if sub.Status != schemas.SubmissionFailed {
		return nil, fmt.Errorf("submission %d is not in a failed state", sub.ID)
	}
	if sub.RetryCount >= sub.MaxRetries {
		return nil, fmt.Errorf("submission %d has no retry budget left", sub.ID)
	}

	product, err := m.repo.GetProduct(ctx, sub.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", sub.ProductID, err)
	}
	directory, err := m.repo.GetDirectory(ctx, sub.DirectoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory %d: %w", sub.DirectoryID, err)
	}

	now := m.now()
	sub.RetryCount++
	sub.LastRetryAt = &now
	sub.Status = schemas.SubmissionPending
	sub.UpdatedAt = now

	// The consumed budget must be durable before the attempt runs: if the
	// process dies mid-attempt, the row must not come back fully eligible.
	if err := m.repo.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist retry bookkeeping for submission %d: %w", sub.ID, err)
	}

	m.logger.Info("Retrying failed submission.",
		zap.Int64("submission_id", sub.ID),
		zap.Int("retry_count", sub.RetryCount),
		zap.Int("max_retries", sub.MaxRetries))
	return m.runAttempt(ctx, sub, product, directory), nil
}
