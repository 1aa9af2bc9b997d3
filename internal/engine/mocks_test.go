package engine

import (
	"context"
	"sync"
	"time"

	"github.com/listforge/listforge/api/schemas"
)

// mockSession scripts one browser session's behavior per attempt.
type mockSession struct {
	mu sync.Mutex

	loginOK  bool
	loginErr error

	captureResult schemas.CaptureResult
	captureErr    error

	urlFirstResult string
	urlFirstErr    error

	fillOutcome schemas.SubmitOutcome
	fillErr     error

	loginCalls    int
	captureCalls  int
	urlFirstCalls int
	fillCalls     []schemas.FillRequest
	closed        bool
	gotPassword   string
}

func (m *mockSession) Login(_ context.Context, _, _, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	m.gotPassword = password
	return m.loginOK, m.loginErr
}

func (m *mockSession) NavigateAndCapture(context.Context, string) (schemas.CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureCalls++
	return m.captureResult, m.captureErr
}

func (m *mockSession) FillAndSubmit(_ context.Context, req schemas.FillRequest) (schemas.SubmitOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fillCalls = append(m.fillCalls, req)
	return m.fillOutcome, m.fillErr
}

func (m *mockSession) SubmitURLFirst(context.Context, schemas.URLFirstRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urlFirstCalls++
	return m.urlFirstResult, m.urlFirstErr
}

func (m *mockSession) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockFactory struct {
	session *mockSession
	err     error
}

func (f *mockFactory) NewSession(context.Context) (schemas.BrowserSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type mockDetector struct {
	structure *schemas.FormStructure
	err       error
	calls     int
}

func (d *mockDetector) Detect(context.Context, string, string) (*schemas.FormStructure, error) {
	d.calls++
	if d.err != nil {
		return &schemas.FormStructure{}, nil
	}
	return d.structure, nil
}

// mockRepo records persistence calls made during an attempt.
type mockRepo struct {
	mu sync.Mutex

	savedStructures  []*schemas.FormStructure
	saveStructureErr error
}

func (r *mockRepo) GetProduct(context.Context, int64) (*schemas.Product, error)     { return nil, nil }
func (r *mockRepo) GetDirectory(context.Context, int64) (*schemas.Directory, error) { return nil, nil }
func (r *mockRepo) CreateSubmission(context.Context, *schemas.Submission) error     { return nil }
func (r *mockRepo) UpdateSubmission(context.Context, *schemas.Submission) error     { return nil }
func (r *mockRepo) RecordAttempt(context.Context, int64, bool) error                { return nil }
func (r *mockRepo) ListRetryable(context.Context, time.Time, time.Duration) ([]*schemas.Submission, error) {
	return nil, nil
}

func (r *mockRepo) SaveFormStructure(_ context.Context, _ int64, fs *schemas.FormStructure, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveStructureErr != nil {
		return r.saveStructureErr
	}
	r.savedStructures = append(r.savedStructures, fs)
	return nil
}
