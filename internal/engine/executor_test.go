package engine

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
	"github.com/listforge/listforge/internal/observability"
	"github.com/listforge/listforge/internal/security"
)

func TestMain(m *testing.M) {
	observability.ResetForTest()
	os.Exit(m.Run())
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		SuccessMarkers: []string{"thank you", "submitted"},
		FailureMarkers: []string{"error", "required field"},
	}
}

func testBox(t *testing.T) *security.Box {
	t.Helper()
	key, err := security.GenerateKey()
	require.NoError(t, err)
	box, err := security.NewBox(key)
	require.NoError(t, err)
	return box
}

func newExecutor(t *testing.T, factory *mockFactory, detector *mockDetector, repo *mockRepo) (*ScriptedExecutor, *security.Box) {
	t.Helper()
	box := testBox(t)
	exec := NewScriptedExecutor(factory, detector, repo, box, testWorkflowConfig())
	exec.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return exec, box
}

func basicStructure() *schemas.FormStructure {
	return &schemas.FormStructure{
		SubmitButtonSelector: "button[type=submit]",
		Fields: []schemas.FormField{
			{FieldName: schemas.FieldCompanyName, Selector: "#name"},
			{FieldName: schemas.FieldWebsiteURL, Selector: "#url"},
		},
	}
}

func basicProduct() *schemas.Product {
	return &schemas.Product{
		ID:         7,
		Name:       "Acme Analytics",
		WebsiteURL: "https://acme.example.com",
	}
}

func basicDirectory() *schemas.Directory {
	return &schemas.Directory{
		ID:     3,
		Name:   "Example Directory",
		URL:    "https://dir.example.com",
		Status: schemas.DirectoryActive,
	}
}

func pendingSubmission() *schemas.Submission {
	return &schemas.Submission{
		ID:          42,
		ProductID:   7,
		DirectoryID: 3,
		Status:      schemas.SubmissionPending,
		MaxRetries:  3,
	}
}

func TestExecute_HappyPath(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		captureResult: schemas.CaptureResult{HTML: "<html><form></form></html>"},
		fillOutcome: schemas.SubmitOutcome{
			FinalURL:       "https://dir.example.com/thanks",
			HTML:           "<html><body><h1>Thank you for your submission!</h1></body></html>",
			ScreenshotPath: "/tmp/shot.png",
		},
	}
	factory := &mockFactory{session: session}
	detector := &mockDetector{structure: basicStructure()}
	repo := &mockRepo{}
	exec, _ := newExecutor(t, factory, detector, repo)

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), basicDirectory())
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionSubmitted, sub.Status)
	require.NotNil(t, sub.SubmittedAt)
	assert.Equal(t, "https://dir.example.com/thanks", sub.ListingURL)
	assert.Equal(t, "/tmp/shot.png", sub.FormScreenshotURL)
	assert.Contains(t, sub.ResponseMessage, "thank you")
	require.NotNil(t, sub.SubmissionData)
	assert.Equal(t, "Acme Analytics", sub.SubmissionData.FieldMapping["#name"])
	assert.Empty(t, sub.ErrorLog)

	assert.Equal(t, 1, detector.calls)
	require.Len(t, repo.savedStructures, 1)
	assert.True(t, session.closed)
}

func TestExecute_CachedStructureSkipsDetection(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		fillOutcome: schemas.SubmitOutcome{HTML: "<html><body>Submitted, pending review</body></html>"},
	}
	factory := &mockFactory{session: session}
	detector := &mockDetector{structure: basicStructure()}
	repo := &mockRepo{}
	exec, _ := newExecutor(t, factory, detector, repo)

	directory := basicDirectory()
	directory.DetectedFormStructure = basicStructure()

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionSubmitted, sub.Status)
	assert.Zero(t, detector.calls, "cache hit must not trigger detection")
	assert.Zero(t, session.captureCalls, "cache hit must not load the page for detection")
	assert.Empty(t, repo.savedStructures, "cache hit must not rewrite the cache")
}

func TestExecute_LoginFailureIsFatal(t *testing.T) {
	t.Parallel()

	session := &mockSession{loginOK: false}
	factory := &mockFactory{session: session}
	detector := &mockDetector{structure: basicStructure()}
	repo := &mockRepo{}
	exec, box := newExecutor(t, factory, detector, repo)

	directory := basicDirectory()
	directory.RequiresLogin = true
	directory.LoginURL = "https://dir.example.com/login"
	directory.LoginUsername = "acme"
	ciphertext, err := box.Encrypt("s3cret")
	require.NoError(t, err)
	directory.LoginPassword = ciphertext

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	require.NotEmpty(t, sub.ErrorLog)
	assert.Contains(t, sub.ErrorLog[len(sub.ErrorLog)-1].Message, "login failed")
	assert.Equal(t, "s3cret", session.gotPassword, "login must receive the decrypted credential")
	assert.Zero(t, detector.calls, "no detection after a fatal login")
	assert.Empty(t, session.fillCalls)
	assert.True(t, session.closed)
}

func TestExecute_UndecryptableCredentialIsFatal(t *testing.T) {
	t.Parallel()

	session := &mockSession{loginOK: true}
	factory := &mockFactory{session: session}
	exec, _ := newExecutor(t, factory, &mockDetector{}, &mockRepo{})

	directory := basicDirectory()
	directory.RequiresLogin = true
	directory.LoginURL = "https://dir.example.com/login"
	directory.LoginPassword = "not-real-ciphertext"

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ResponseMessage, "decrypt")
	assert.Zero(t, session.loginCalls)
}

func TestExecute_URLFirstRedirectsTarget(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		urlFirstResult: "https://dir.example.com/listing/new",
		captureResult:  schemas.CaptureResult{HTML: "<html><form></form></html>"},
		fillOutcome:    schemas.SubmitOutcome{HTML: "<html><body>Thank you</body></html>"},
	}
	factory := &mockFactory{session: session}
	detector := &mockDetector{structure: basicStructure()}
	exec, _ := newExecutor(t, factory, detector, &mockRepo{})

	directory := basicDirectory()
	directory.RequiresURLFirst = true

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionSubmitted, sub.Status)
	assert.Equal(t, 1, session.urlFirstCalls)
	require.Len(t, session.fillCalls, 1)
	assert.Equal(t, "https://dir.example.com/listing/new", session.fillCalls[0].URL)
}

func TestExecute_URLFirstFailureIsFatal(t *testing.T) {
	t.Parallel()

	session := &mockSession{urlFirstErr: fmt.Errorf("no url input found")}
	factory := &mockFactory{session: session}
	exec, _ := newExecutor(t, factory, &mockDetector{structure: basicStructure()}, &mockRepo{})

	directory := basicDirectory()
	directory.RequiresURLFirst = true

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ResponseMessage, "url-first")
	assert.Empty(t, session.fillCalls)
}

func TestExecute_ZeroMappedFieldsIsFatal(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		captureResult: schemas.CaptureResult{HTML: "<html></html>"},
	}
	factory := &mockFactory{session: session}
	detector := &mockDetector{structure: &schemas.FormStructure{}}
	repo := &mockRepo{}
	exec, _ := newExecutor(t, factory, detector, repo)

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), basicDirectory())
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	assert.Equal(t, "no fields could be mapped", sub.ResponseMessage)
	assert.Empty(t, repo.savedStructures, "empty detection must not be cached")
	assert.Empty(t, session.fillCalls)
}

func TestExecute_FailureMarkerLoses(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		captureResult: schemas.CaptureResult{HTML: "<html><form></form></html>"},
		fillOutcome: schemas.SubmitOutcome{
			HTML: "<html><body>Error: the Website field is a required field</body></html>",
		},
	}
	factory := &mockFactory{session: session}
	exec, _ := newExecutor(t, factory, &mockDetector{structure: basicStructure()}, &mockRepo{})

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), basicDirectory())
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ResponseMessage, "reported a problem")
}

func TestExecute_SessionLaunchFailureProducesFailedRecord(t *testing.T) {
	t.Parallel()

	factory := &mockFactory{err: fmt.Errorf("chrome not found")}
	exec, _ := newExecutor(t, factory, &mockDetector{}, &mockRepo{})

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), basicDirectory())
	require.NoError(t, err, "attempt-level failures are recorded, not returned")
	assert.Equal(t, schemas.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ResponseMessage, "browser session")
}

func TestExecute_MultiStepBookkeeping(t *testing.T) {
	t.Parallel()

	session := &mockSession{
		captureResult: schemas.CaptureResult{HTML: "<html><form></form></html>"},
		fillOutcome:   schemas.SubmitOutcome{HTML: "<html><body>Thank you</body></html>"},
	}
	factory := &mockFactory{session: session}
	exec, _ := newExecutor(t, factory, &mockDetector{structure: basicStructure()}, &mockRepo{})

	directory := basicDirectory()
	directory.IsMultiStep = true
	directory.StepCount = 3

	sub, err := exec.Execute(context.Background(), pendingSubmission(), basicProduct(), directory)
	require.NoError(t, err)

	assert.Equal(t, schemas.SubmissionSubmitted, sub.Status)
	assert.Equal(t, 3, sub.CurrentStep)
	assert.Equal(t, []int{1, 2, 3}, sub.CompletedSteps)
	require.Len(t, session.fillCalls, 1)
	assert.True(t, session.fillCalls[0].IsMultiStep)
	assert.Equal(t, 3, session.fillCalls[0].StepCount)
}
