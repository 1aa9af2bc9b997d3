// api/schemas/submission.go
package schemas

import "time"

// SubmissionStatus is the lifecycle state of a submission record.
// PENDING transitions to SUBMITTED or FAILED inside the engine; SUBMITTED may
// later become APPROVED or REJECTED through an out-of-band review step.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
	SubmissionFailed    SubmissionStatus = "failed"
)

// IsTerminal reports whether the status allows no further automatic
// transition without an external re-trigger (retry).
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionSubmitted || s == SubmissionFailed
}

// ErrorEntry is one timestamped line of a submission's error log.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// SubmissionData is the diagnostic snapshot persisted alongside the record:
// the exact mapping used for filling plus the form structure it came from.
type SubmissionData struct {
	FieldMapping  map[string]string `json:"field_mapping,omitempty"`
	FormStructure *FormStructure    `json:"form_structure,omitempty"`
}

// Submission ties one Product to one Directory for a single listing attempt.
type Submission struct {
	ID          int64            `json:"id"`
	OwnerID     int64            `json:"owner_id"`
	ProductID   int64            `json:"product_id"`
	DirectoryID int64            `json:"directory_id"`
	Status      SubmissionStatus `json:"status"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`

	SubmissionData  *SubmissionData `json:"submission_data,omitempty"`
	ResponseMessage string          `json:"response_message,omitempty"`
	ListingURL      string          `json:"listing_url,omitempty"`

	// Retry bookkeeping. RetryCount never exceeds MaxRetries; once equal the
	// record is terminal until MaxRetries is manually raised.
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	ErrorLog    []ErrorEntry `json:"error_log,omitempty"`

	// Artifacts from the detection and fill phases.
	DetectedFields    *FormStructure `json:"detected_fields,omitempty"`
	FormScreenshotURL string         `json:"form_screenshot_url,omitempty"`

	CurrentStep    int   `json:"current_step"`
	CompletedSteps []int `json:"completed_steps,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendError records a failure reason with the current time. The ordered log
// survives retries, so repeated failures accumulate one entry per attempt.
func (s *Submission) AppendError(now time.Time, message string) {
	s.ErrorLog = append(s.ErrorLog, ErrorEntry{Timestamp: now, Message: message})
}
