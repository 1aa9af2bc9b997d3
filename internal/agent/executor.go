// internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
	"github.com/listforge/listforge/internal/engine"
	"github.com/listforge/listforge/internal/observability"
	"github.com/listforge/listforge/internal/security"
)

// Executor implements schemas.SubmissionExecutor by handing the whole
// attempt to a hosted browsing agent. It shares the result classification
// with the scripted engine so both strategies judge outcomes identically.
type Executor struct {
	runner     TaskRunner
	secrets    *security.Box
	classifier *engine.Classifier
	logger     *zap.Logger

	now func() time.Time
}

var _ schemas.SubmissionExecutor = (*Executor)(nil)

func NewExecutor(runner TaskRunner, secrets *security.Box, cfg config.WorkflowConfig) *Executor {
	return &Executor{
		runner:     runner,
		secrets:    secrets,
		classifier: engine.NewClassifier(cfg.SuccessMarkers, cfg.FailureMarkers),
		logger:     observability.GetLogger().Named("agent_executor"),
		now:        time.Now,
	}
}

// Execute runs one agent-driven submission attempt. Like the scripted
// executor, attempt-level failures land on the returned record, not in the
// error return.
func (e *Executor) Execute(ctx context.Context, sub *schemas.Submission, product *schemas.Product, directory *schemas.Directory) (*schemas.Submission, error) {
	log := e.logger.With(
		zap.Int64("submission_id", sub.ID),
		zap.String("directory", directory.Name),
	)

	prompt, err := e.buildTask(product, directory)
	if err != nil {
		return e.fail(sub, log, err.Error()), nil
	}

	log.Info("Delegating submission to browsing agent.")
	output, err := e.runner.RunTask(ctx, prompt)
	if err != nil {
		return e.fail(sub, log, fmt.Sprintf("agent task failed: %v", err)), nil
	}

	verdict := e.classifier.Classify(schemas.SubmitOutcome{HTML: output})
	sub.ResponseMessage = firstLine(output)
	if !verdict.Success {
		return e.fail(sub, log, verdict.Message), nil
	}

	now := e.now()
	sub.Status = schemas.SubmissionSubmitted
	sub.SubmittedAt = &now
	log.Info("Agent-driven submission succeeded.")
	return sub, nil
}

// buildTask writes the natural-language instruction the agent executes. The
// login credential is decrypted here, at the point of use, and only ever
// placed into the outgoing task text.
func (e *Executor) buildTask(product *schemas.Product, directory *schemas.Directory) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Submit the following product to the directory at %s.\n\n", directory.TargetURL())
	fmt.Fprintf(&b, "Product name: %s\n", product.Name)
	fmt.Fprintf(&b, "Website: %s\n", product.WebsiteURL)
	if product.ContactEmail != "" {
		fmt.Fprintf(&b, "Contact email: %s\n", product.ContactEmail)
	}
	if short := product.ShortText(); short != "" {
		fmt.Fprintf(&b, "Short description: %s\n", short)
	}
	if product.Description != "" {
		fmt.Fprintf(&b, "Full description: %s\n", product.Description)
	}
	if product.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", product.Category)
	}
	if product.PricingModel != "" {
		fmt.Fprintf(&b, "Pricing model: %s\n", product.PricingModel)
	}
	for network, link := range product.SocialLinks {
		fmt.Fprintf(&b, "%s profile: %s\n", network, link)
	}

	if directory.RequiresLogin && directory.LoginURL != "" {
		password, err := e.secrets.Decrypt(directory.LoginPassword)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt login credentials")
		}
		fmt.Fprintf(&b, "\nFirst log in at %s with username %q and password %q.\n",
			directory.LoginURL, directory.LoginUsername, password)
	}

	if directory.RequiresURLFirst {
		fmt.Fprintf(&b, "\nThis directory first asks only for the product website URL; enter %s, submit it, then complete the full form it reveals.\n",
			product.WebsiteURL)
	}

	if directory.IsMultiStep && directory.StepCount > 1 {
		fmt.Fprintf(&b, "\nThe form has %d steps; complete every step before the final submit.\n", directory.StepCount)
	}

	b.WriteString("\nFill every form field you can from the product details above, submit the form, and report whether the directory confirmed the submission.")
	return b.String(), nil
}

func (e *Executor) fail(sub *schemas.Submission, log *zap.Logger, reason string) *schemas.Submission {
	sub.Status = schemas.SubmissionFailed
	sub.ResponseMessage = reason
	sub.AppendError(e.now(), reason)
	log.Warn("Agent-driven submission failed.", zap.String("reason", reason))
	return sub
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}
