// api/schemas/interfaces.go
package schemas

import (
	"context"
	"time"
)

// CaptureResult is what a navigation yields: a screenshot reference on disk
// and the page's serialized HTML.
type CaptureResult struct {
	ScreenshotPath string
	HTML           string
}

// FillRequest describes a fill-and-submit pass over a form page.
type FillRequest struct {
	URL string
	// FieldValues maps CSS selectors to the values to type into them.
	FieldValues          map[string]string
	SubmitButtonSelector string
	IsMultiStep          bool
	StepCount            int
}

// SubmitOutcome is the raw observable state after a form submission. The
// engine, not the browser layer, decides whether it represents success.
type SubmitOutcome struct {
	FinalURL       string
	HTML           string
	ScreenshotPath string
}

// URLFirstRequest describes the two-phase pattern where a website URL is
// submitted on an initial page before the full listing form is revealed.
type URLFirstRequest struct {
	InitialURL        string
	WebsiteURL        string
	URLFieldSelector  string
	URLSubmitSelector string
}

// BrowserSession drives a single reusable browser context for the lifetime of
// one submission attempt. Sessions are never shared across attempts. All
// operations are fallible and honor the context's deadline.
type BrowserSession interface {
	// Login performs a best-effort credential login. The boolean reports
	// whether the flow completed; false is a fatal outcome for the attempt.
	Login(ctx context.Context, loginURL, username, password string) (bool, error)

	// NavigateAndCapture loads a page and returns its screenshot and HTML.
	NavigateAndCapture(ctx context.Context, url string) (CaptureResult, error)

	// FillAndSubmit fills the mapped fields and submits, returning the
	// resulting page state for classification.
	FillAndSubmit(ctx context.Context, req FillRequest) (SubmitOutcome, error)

	// SubmitURLFirst performs the url-first step and returns the URL of the
	// revealed form page.
	SubmitURLFirst(ctx context.Context, req URLFirstRequest) (string, error)

	// Close releases the browser context. It is idempotent and must be called
	// regardless of which phase failed.
	Close(ctx context.Context) error
}

// SessionFactory creates one fresh BrowserSession per submission attempt.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// FormDetector turns page content into a structured field list. Detection
// quality is probabilistic: implementations degrade to an empty field list on
// malformed output instead of returning an error that would abort an attempt.
type FormDetector interface {
	Detect(ctx context.Context, html, pageURL string) (*FormStructure, error)
}

// SubmissionExecutor drives one (Product, Directory) submission attempt to a
// terminal state. The scripted and agent variants share this contract and are
// selected via configuration.
type SubmissionExecutor interface {
	Execute(ctx context.Context, sub *Submission, product *Product, directory *Directory) (*Submission, error)
}

// Repository is the persistence boundary consumed by the engine. Counter
// updates are atomic at the statement level; concurrent writers to the same
// Directory's cached structure are last-write-wins.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetDirectory(ctx context.Context, id int64) (*Directory, error)

	CreateSubmission(ctx context.Context, sub *Submission) error
	UpdateSubmission(ctx context.Context, sub *Submission) error

	// SaveFormStructure persists a fresh detection result and its timestamp
	// onto the Directory in a single update.
	SaveFormStructure(ctx context.Context, directoryID int64, fs *FormStructure, detectedAt time.Time) error

	// RecordAttempt increments the directory counters for one terminal
	// outcome: total always, successful only when success is true.
	RecordAttempt(ctx context.Context, directoryID int64, success bool) error

	// ListRetryable returns FAILED submissions with retry budget remaining
	// whose last retry (if any) is older than delay.
	ListRetryable(ctx context.Context, now time.Time, delay time.Duration) ([]*Submission, error)
}
