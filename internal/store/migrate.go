// internal/store/migrate.go
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// migrations run in order inside one transaction; every statement is
// idempotent so Migrate can run on every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		website_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		tagline TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		pricing_model TEXT NOT NULL DEFAULT '',
		features TEXT[] NOT NULL DEFAULT '{}',
		social_links JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS directories (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		submission_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		requires_login BOOLEAN NOT NULL DEFAULT FALSE,
		login_url TEXT NOT NULL DEFAULT '',
		login_username TEXT NOT NULL DEFAULT '',
		login_password TEXT NOT NULL DEFAULT '',
		requires_url_first BOOLEAN NOT NULL DEFAULT FALSE,
		url_field_selector TEXT NOT NULL DEFAULT '',
		url_submit_selector TEXT NOT NULL DEFAULT '',
		is_multi_step BOOLEAN NOT NULL DEFAULT FALSE,
		step_count INTEGER NOT NULL DEFAULT 1,
		domain_authority INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
		estimated_approval_time TEXT NOT NULL DEFAULT '',
		detected_form_structure JSONB,
		last_form_detection TIMESTAMPTZ,
		total_submissions INTEGER NOT NULL DEFAULT 0,
		successful_submissions INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL REFERENCES products(id),
		directory_id BIGINT NOT NULL REFERENCES directories(id),
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_at TIMESTAMPTZ,
		approved_at TIMESTAMPTZ,
		rejected_at TIMESTAMPTZ,
		submission_data JSONB,
		response_message TEXT NOT NULL DEFAULT '',
		listing_url TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		last_retry_at TIMESTAMPTZ,
		error_log JSONB NOT NULL DEFAULT '[]',
		detected_fields JSONB,
		form_screenshot_url TEXT NOT NULL DEFAULT '',
		current_step INTEGER NOT NULL DEFAULT 0,
		completed_steps INTEGER[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_submissions_product ON submissions (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_directory ON submissions (directory_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_retryable
		ON submissions (status, retry_count) WHERE status = 'failed'`,
}

// Migrate applies the schema. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for i, stmt := range migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	s.log.Info("Database schema is up to date.", zap.Int("statements", len(migrations)))
	return nil
}
