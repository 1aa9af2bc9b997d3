package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/listforge/listforge/api/schemas"
)

type attemptRecord struct {
	directoryID int64
	success     bool
}

// fakeRepo is an in-memory Repository good enough for coordinator tests.
type fakeRepo struct {
	mu sync.Mutex

	products    map[int64]*schemas.Product
	directories map[int64]*schemas.Directory

	nextID    int64
	created   []*schemas.Submission
	updated   []*schemas.Submission
	attempts  []attemptRecord
	retryable []*schemas.Submission

	createErr error
	updateErr error
	listErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:    make(map[int64]*schemas.Product),
		directories: make(map[int64]*schemas.Directory),
	}
}

func (r *fakeRepo) GetProduct(_ context.Context, id int64) (*schemas.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	return p, nil
}

func (r *fakeRepo) GetDirectory(_ context.Context, id int64) (*schemas.Directory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.directories[id]
	if !ok {
		return nil, fmt.Errorf("directory %d not found", id)
	}
	return d, nil
}

func (r *fakeRepo) CreateSubmission(_ context.Context, sub *schemas.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	sub.ID = r.nextID
	r.created = append(r.created, sub)
	return nil
}

func (r *fakeRepo) UpdateSubmission(_ context.Context, sub *schemas.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	// Snapshot the record so later in-memory mutations by the caller do not
	// rewrite what was "persisted" at this point.
	copied := *sub
	r.updated = append(r.updated, &copied)
	return nil
}

func (r *fakeRepo) SaveFormStructure(context.Context, int64, *schemas.FormStructure, time.Time) error {
	return nil
}

func (r *fakeRepo) RecordAttempt(_ context.Context, directoryID int64, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attemptRecord{directoryID: directoryID, success: success})
	return nil
}

func (r *fakeRepo) ListRetryable(context.Context, time.Time, time.Duration) ([]*schemas.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.retryable, nil
}

func (r *fakeRepo) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

// fakeExecutor scripts attempt outcomes and tracks how many attempts run
// simultaneously.
type fakeExecutor struct {
	mu sync.Mutex

	fn    func(sub *schemas.Submission, directory *schemas.Directory) (*schemas.Submission, error)
	delay time.Duration

	calls       int
	inFlight    int
	maxInFlight int
}

func (e *fakeExecutor) Execute(ctx context.Context, sub *schemas.Submission, product *schemas.Product, directory *schemas.Directory) (*schemas.Submission, error) {
	e.mu.Lock()
	e.calls++
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
		}
	}

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if e.fn != nil {
		return e.fn(sub, directory)
	}
	now := time.Now()
	sub.Status = schemas.SubmissionSubmitted
	sub.SubmittedAt = &now
	return sub, nil
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *fakeExecutor) peakConcurrency() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInFlight
}
