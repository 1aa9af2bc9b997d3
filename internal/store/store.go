// Package store provides the PostgreSQL implementation of the repository
// consumed by the submission workflow.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrDirectoryNotFound  = errors.New("directory not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements schemas.Repository on PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.Repository = (*Store)(nil)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const getProductSQL = `
SELECT id, owner_id, name, website_url, description, short_description, tagline,
       category, logo_url, contact_email, pricing_model, features, social_links,
       created_at, updated_at
FROM products WHERE id = $1`

func (s *Store) GetProduct(ctx context.Context, id int64) (*schemas.Product, error) {
	var (
		p           schemas.Product
		socialLinks []byte
	)
	err := s.pool.QueryRow(ctx, getProductSQL, id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.WebsiteURL, &p.Description,
		&p.ShortDescription, &p.Tagline, &p.Category, &p.LogoURL,
		&p.ContactEmail, &p.PricingModel, &p.Features, &socialLinks,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	if len(socialLinks) > 0 {
		if err := json.Unmarshal(socialLinks, &p.SocialLinks); err != nil {
			return nil, fmt.Errorf("failed to decode social links for product %d: %w", id, err)
		}
	}
	return &p, nil
}

const getDirectorySQL = `
SELECT id, owner_id, name, url, submission_url, status,
       requires_login, login_url, login_username, login_password,
       requires_url_first, url_field_selector, url_submit_selector,
       is_multi_step, step_count,
       domain_authority, category, requires_approval, estimated_approval_time,
       detected_form_structure, last_form_detection,
       total_submissions, successful_submissions,
       created_at, updated_at
FROM directories WHERE id = $1`

func (s *Store) GetDirectory(ctx context.Context, id int64) (*schemas.Directory, error) {
	var (
		d         schemas.Directory
		structure []byte
	)
	err := s.pool.QueryRow(ctx, getDirectorySQL, id).Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.URL, &d.SubmissionURL, &d.Status,
		&d.RequiresLogin, &d.LoginURL, &d.LoginUsername, &d.LoginPassword,
		&d.RequiresURLFirst, &d.URLFieldSelector, &d.URLSubmitSelector,
		&d.IsMultiStep, &d.StepCount,
		&d.DomainAuthority, &d.Category, &d.RequiresApproval, &d.EstimatedApprovalTime,
		&structure, &d.LastFormDetection,
		&d.TotalSubmissions, &d.SuccessfulSubmissions,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDirectoryNotFound
		}
		return nil, fmt.Errorf("failed to query directory %d: %w", id, err)
	}

	if len(structure) > 0 {
		if err := json.Unmarshal(structure, &d.DetectedFormStructure); err != nil {
			return nil, fmt.Errorf("failed to decode form structure for directory %d: %w", id, err)
		}
	}
	return &d, nil
}

const createSubmissionSQL = `
INSERT INTO submissions (owner_id, product_id, directory_id, status, max_retries, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

func (s *Store) CreateSubmission(ctx context.Context, sub *schemas.Submission) error {
	err := s.pool.QueryRow(ctx, createSubmissionSQL,
		sub.OwnerID, sub.ProductID, sub.DirectoryID, string(sub.Status),
		sub.MaxRetries, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

const updateSubmissionSQL = `
UPDATE submissions SET
    status = $2, submitted_at = $3, approved_at = $4, rejected_at = $5,
    submission_data = $6, response_message = $7, listing_url = $8,
    retry_count = $9, last_retry_at = $10, error_log = $11,
    detected_fields = $12, form_screenshot_url = $13,
    current_step = $14, completed_steps = $15, updated_at = $16
WHERE id = $1`

func (s *Store) UpdateSubmission(ctx context.Context, sub *schemas.Submission) error {
	submissionData, err := marshalNullable(sub.SubmissionData)
	if err != nil {
		return fmt.Errorf("failed to encode submission data: %w", err)
	}
	detectedFields, err := marshalNullable(sub.DetectedFields)
	if err != nil {
		return fmt.Errorf("failed to encode detected fields: %w", err)
	}
	errorLog, err := json.Marshal(sub.ErrorLog)
	if err != nil {
		return fmt.Errorf("failed to encode error log: %w", err)
	}

	tag, err := s.pool.Exec(ctx, updateSubmissionSQL,
		sub.ID, string(sub.Status), sub.SubmittedAt, sub.ApprovedAt, sub.RejectedAt,
		submissionData, sub.ResponseMessage, sub.ListingURL,
		sub.RetryCount, sub.LastRetryAt, errorLog,
		detectedFields, sub.FormScreenshotURL,
		sub.CurrentStep, sub.CompletedSteps, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission %d: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

const saveFormStructureSQL = `
UPDATE directories
SET detected_form_structure = $2, last_form_detection = $3, updated_at = $3
WHERE id = $1`

func (s *Store) SaveFormStructure(ctx context.Context, directoryID int64, fs *schemas.FormStructure, detectedAt time.Time) error {
	encoded, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("failed to encode form structure: %w", err)
	}

	tag, err := s.pool.Exec(ctx, saveFormStructureSQL, directoryID, encoded, detectedAt)
	if err != nil {
		return fmt.Errorf("failed to save form structure for directory %d: %w", directoryID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

// recordAttemptSQL moves both counters in one statement so concurrent
// attempts against the same directory never lose an increment.
const recordAttemptSQL = `
UPDATE directories
SET total_submissions = total_submissions + 1,
    successful_submissions = successful_submissions + CASE WHEN $2 THEN 1 ELSE 0 END,
    updated_at = NOW()
WHERE id = $1`

func (s *Store) RecordAttempt(ctx context.Context, directoryID int64, success bool) error {
	tag, err := s.pool.Exec(ctx, recordAttemptSQL, directoryID, success)
	if err != nil {
		return fmt.Errorf("failed to record attempt for directory %d: %w", directoryID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

const listRetryableSQL = `
SELECT id, owner_id, product_id, directory_id, status,
       submitted_at, approved_at, rejected_at,
       submission_data, response_message, listing_url,
       retry_count, max_retries, last_retry_at, error_log,
       detected_fields, form_screenshot_url,
       current_step, completed_steps,
       created_at, updated_at
FROM submissions
WHERE status = 'failed'
  AND retry_count < max_retries
  AND COALESCE(last_retry_at, updated_at) <= $1
ORDER BY updated_at ASC`

// ListRetryable returns failed submissions with retry budget left whose most
// recent activity is at least delay old.
func (s *Store) ListRetryable(ctx context.Context, now time.Time, delay time.Duration) ([]*schemas.Submission, error) {
	cutoff := now.Add(-delay)

	rows, err := s.pool.Query(ctx, listRetryableSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable submissions: %w", err)
	}
	defer rows.Close()

	var subs []*schemas.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retryable submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.Row) (*schemas.Submission, error) {
	var (
		sub            schemas.Submission
		submissionData []byte
		errorLog       []byte
		detectedFields []byte
	)
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.ProductID, &sub.DirectoryID, &sub.Status,
		&sub.SubmittedAt, &sub.ApprovedAt, &sub.RejectedAt,
		&submissionData, &sub.ResponseMessage, &sub.ListingURL,
		&sub.RetryCount, &sub.MaxRetries, &sub.LastRetryAt, &errorLog,
		&detectedFields, &sub.FormScreenshotURL,
		&sub.CurrentStep, &sub.CompletedSteps,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission row: %w", err)
	}

	if len(submissionData) > 0 {
		if err := json.Unmarshal(submissionData, &sub.SubmissionData); err != nil {
			return nil, fmt.Errorf("failed to decode submission data: %w", err)
		}
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &sub.ErrorLog); err != nil {
			return nil, fmt.Errorf("failed to decode error log: %w", err)
		}
	}
	if len(detectedFields) > 0 {
		if err := json.Unmarshal(detectedFields, &sub.DetectedFields); err != nil {
			return nil, fmt.Errorf("failed to decode detected fields: %w", err)
		}
	}
	return &sub, nil
}

// marshalNullable encodes v, mapping a nil pointer to SQL NULL instead of
// the JSON literal "null".
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
