// api/schemas/directory.go
package schemas

import "time"

// DirectoryStatus describes whether a directory is usable for submissions.
type DirectoryStatus string

const (
	DirectoryActive   DirectoryStatus = "active"
	DirectoryInactive DirectoryStatus = "inactive"
	DirectoryTesting  DirectoryStatus = "testing"
)

// Directory is a third-party website that accepts product listing submissions.
// Login credentials are stored encrypted; they are decrypted only at the point
// of use inside the login phase and must never be logged or re-persisted in
// plaintext.
type Directory struct {
	ID            int64           `json:"id"`
	OwnerID       int64           `json:"owner_id"`
	Name          string          `json:"name"`
	URL           string          `json:"url"`
	SubmissionURL string          `json:"submission_url,omitempty"`
	Status        DirectoryStatus `json:"status"`

	RequiresLogin bool   `json:"requires_login"`
	LoginURL      string `json:"login_url,omitempty"`
	LoginUsername string `json:"login_username,omitempty"`
	// LoginPassword holds the ciphertext, never the plaintext.
	LoginPassword string `json:"-"`

	// URL-first pattern: the product website URL is submitted on an initial
	// page before the full listing form is revealed (e.g. SaaSHub).
	RequiresURLFirst  bool   `json:"requires_url_first"`
	URLFieldSelector  string `json:"url_field_selector,omitempty"`
	URLSubmitSelector string `json:"url_submit_selector,omitempty"`

	IsMultiStep bool `json:"is_multi_step"`
	StepCount   int  `json:"step_count"`

	DomainAuthority       int    `json:"domain_authority,omitempty"`
	Category              string `json:"category,omitempty"`
	RequiresApproval      bool   `json:"requires_approval"`
	EstimatedApprovalTime string `json:"estimated_approval_time,omitempty"`

	// DetectedFormStructure caches the field map from the last successful
	// detection. Once populated it is reused verbatim until explicitly
	// invalidated; the submission engine is the only writer.
	DetectedFormStructure *FormStructure `json:"detected_form_structure,omitempty"`
	LastFormDetection     *time.Time     `json:"last_form_detection,omitempty"`

	// Counters are monotonically non-decreasing and updated exactly once per
	// terminal outcome of a submission attempt.
	TotalSubmissions      int `json:"total_submissions"`
	SuccessfulSubmissions int `json:"successful_submissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TargetURL returns the page a submission attempt should start from: the
// dedicated submission page when one is configured, the listing URL otherwise.
func (d *Directory) TargetURL() string {
	if d.SubmissionURL != "" {
		return d.SubmissionURL
	}
	return d.URL
}
