// Package engine contains the scripted submission state machine: one
// Execute call drives a (product, directory) pair from a pending record to
// a terminal SUBMITTED or FAILED state through login, url-first, form
// detection, field mapping and fill/submit phases.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
	"github.com/listforge/listforge/internal/mapper"
	"github.com/listforge/listforge/internal/observability"
	"github.com/listforge/listforge/internal/security"
)

// sessionCloseTimeout bounds browser teardown after an attempt, successful
// or not.
const sessionCloseTimeout = 10 * time.Second

// ScriptedExecutor implements schemas.SubmissionExecutor with a
// deterministic selector-driven browser flow.
type ScriptedExecutor struct {
	sessions   schemas.SessionFactory
	detector   schemas.FormDetector
	repo       schemas.Repository
	secrets    *security.Box
	classifier *Classifier
	logger     *zap.Logger

	now func() time.Time
}

var _ schemas.SubmissionExecutor = (*ScriptedExecutor)(nil)

func NewScriptedExecutor(
	sessions schemas.SessionFactory,
	detector schemas.FormDetector,
	repo schemas.Repository,
	secrets *security.Box,
	cfg config.WorkflowConfig,
) *ScriptedExecutor {
	return &ScriptedExecutor{
		sessions:   sessions,
		detector:   detector,
		repo:       repo,
		secrets:    secrets,
		classifier: NewClassifier(cfg.SuccessMarkers, cfg.FailureMarkers),
		logger:     observability.GetLogger().Named("engine"),
		now:        time.Now,
	}
}

// Execute drives one submission attempt to a terminal state. Attempt-level
// failures (login rejected, no mappable fields, browser errors) are recorded
// on the returned submission, not returned as errors; the error return is
// reserved for failures that prevent an attempt from happening at all.
func (e *ScriptedExecutor) Execute(ctx context.Context, sub *schemas.Submission, product *schemas.Product, directory *schemas.Directory) (*schemas.Submission, error) {
	log := e.logger.With(
		zap.Int64("submission_id", sub.ID),
		zap.Int64("product_id", product.ID),
		zap.String("directory", directory.Name),
	)
	log.Info("Starting submission attempt.")

	session, err := e.sessions.NewSession(ctx)
	if err != nil {
		return e.fail(sub, log, fmt.Sprintf("failed to start browser session: %v", err)), nil
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("Error closing browser session.", zap.Error(err))
		}
	}()

	// Phase 1: login. Optional, but fatal when it fails.
	if directory.RequiresLogin && directory.LoginURL != "" {
		if ok, reason := e.login(ctx, session, directory, log); !ok {
			return e.fail(sub, log, reason), nil
		}
	}

	// Phase 2: url-first gate. Optional, fatal on failure; a completed gate
	// redirects the attempt to the revealed form page.
	target := directory.TargetURL()
	if directory.RequiresURLFirst {
		revealed, err := session.SubmitURLFirst(ctx, schemas.URLFirstRequest{
			InitialURL:        target,
			WebsiteURL:        product.WebsiteURL,
			URLFieldSelector:  directory.URLFieldSelector,
			URLSubmitSelector: directory.URLSubmitSelector,
		})
		if err != nil {
			return e.fail(sub, log, fmt.Sprintf("url-first step failed: %v", err)), nil
		}
		if revealed != "" {
			target = revealed
		}
	}

	// Phase 3: form detection, skipped entirely on a cache hit.
	structure, err := e.detectStructure(ctx, session, directory, target, log)
	if err != nil {
		return e.fail(sub, log, err.Error()), nil
	}
	sub.DetectedFields = structure

	// Phase 4: field mapping. An empty mapping means the attempt cannot
	// possibly place any product data, which is fatal.
	values := mapper.Map(product, structure.Fields)
	if len(values) == 0 {
		return e.fail(sub, log, "no fields could be mapped"), nil
	}
	sub.SubmissionData = &schemas.SubmissionData{
		FieldMapping:  values,
		FormStructure: structure,
	}

	// Phase 5: fill and submit.
	outcome, err := session.FillAndSubmit(ctx, schemas.FillRequest{
		URL:                  target,
		FieldValues:          values,
		SubmitButtonSelector: structure.SubmitButtonSelector,
		IsMultiStep:          directory.IsMultiStep,
		StepCount:            directory.StepCount,
	})
	if err != nil {
		return e.fail(sub, log, fmt.Sprintf("form submission failed: %v", err)), nil
	}
	sub.FormScreenshotURL = outcome.ScreenshotPath

	// Phase 6: classify the result page.
	verdict := e.classifier.Classify(outcome)
	if !verdict.Success {
		return e.fail(sub, log, verdict.Message), nil
	}

	now := e.now()
	sub.Status = schemas.SubmissionSubmitted
	sub.SubmittedAt = &now
	sub.ResponseMessage = verdict.Message
	sub.ListingURL = outcome.FinalURL
	if directory.IsMultiStep && directory.StepCount > 1 {
		sub.CurrentStep = directory.StepCount
		sub.CompletedSteps = sub.CompletedSteps[:0]
		for step := 1; step <= directory.StepCount; step++ {
			sub.CompletedSteps = append(sub.CompletedSteps, step)
		}
	}

	log.Info("Submission attempt succeeded.",
		zap.String("listing_url", sub.ListingURL),
		zap.String("message", verdict.Message))
	return sub, nil
}

// login decrypts the stored credential and runs the browser login flow. The
// plaintext password lives only on this stack frame and is never logged.
func (e *ScriptedExecutor) login(ctx context.Context, session schemas.BrowserSession, directory *schemas.Directory, log *zap.Logger) (bool, string) {
	password, err := e.secrets.Decrypt(directory.LoginPassword)
	if err != nil {
		log.Error("Could not decrypt directory credentials.", zap.Error(err))
		return false, "failed to decrypt login credentials"
	}

	ok, err := session.Login(ctx, directory.LoginURL, directory.LoginUsername, password)
	if err != nil {
		return false, fmt.Sprintf("login failed: %v", err)
	}
	if !ok {
		return false, "login failed: credentials rejected or login form not found"
	}
	return true, ""
}

// detectStructure returns the cached form structure when the directory has
// one, otherwise it loads the page, runs detection, and persists a non-empty
// result onto the directory.
func (e *ScriptedExecutor) detectStructure(ctx context.Context, session schemas.BrowserSession, directory *schemas.Directory, target string, log *zap.Logger) (*schemas.FormStructure, error) {
	if cached := directory.DetectedFormStructure; cached != nil {
		log.Debug("Using cached form structure.", zap.Int("field_count", len(cached.Fields)))
		return cached, nil
	}

	capture, err := session.NavigateAndCapture(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load form page: %v", err)
	}

	structure, err := e.detector.Detect(ctx, capture.HTML, target)
	if err != nil || structure == nil {
		// Detectors degrade to empty structures rather than erroring, but
		// guard anyway; an empty structure fails at the mapping phase with
		// a clearer reason.
		structure = &schemas.FormStructure{}
	}

	if len(structure.Fields) > 0 {
		detectedAt := e.now()
		if err := e.repo.SaveFormStructure(ctx, directory.ID, structure, detectedAt); err != nil {
			log.Warn("Could not persist detected form structure.", zap.Error(err))
		} else {
			directory.DetectedFormStructure = structure
			directory.LastFormDetection = &detectedAt
		}
	}
	return structure, nil
}

// fail marks the submission terminally FAILED with a timestamped reason.
func (e *ScriptedExecutor) fail(sub *schemas.Submission, log *zap.Logger, reason string) *schemas.Submission {
	sub.Status = schemas.SubmissionFailed
	sub.ResponseMessage = reason
	sub.AppendError(e.now(), reason)
	log.Warn("Submission attempt failed.", zap.String("reason", reason))
	return sub
}
