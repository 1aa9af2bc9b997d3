// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
)

// probeTimeout bounds a single existence check for one candidate selector.
const probeTimeout = 2 * time.Second

// Session drives a single browser process for the lifetime of one
// submission attempt and implements schemas.BrowserSession.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       config.BrowserConfig
	selectors SelectorSet
	logger    *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.BrowserSession = (*Session)(nil)

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close tears down the browser process. Idempotent.
func (s *Session) Close(_ context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Login navigates to the login page, fills credentials and submits. The
// boolean reports whether the flow completed: a missing login form or a
// password field that survives the submit both count as failure.
func (s *Session) Login(ctx context.Context, loginURL, username, password string) (bool, error) {
	if err := s.navigate(ctx, loginURL); err != nil {
		return false, fmt.Errorf("failed to load login page: %w", err)
	}

	passwordSel := firstPresent(ctx, s.selectors.PasswordFields, s.exists)
	if passwordSel == "" {
		s.logger.Warn("No password field found on login page.", zap.String("url", loginURL))
		return false, nil
	}

	var actions chromedp.Tasks
	if usernameSel := firstPresent(ctx, s.selectors.UsernameFields, s.exists); usernameSel != "" {
		actions = append(actions, chromedp.SetValue(usernameSel, username, s.byOpt(usernameSel)))
	} else {
		s.logger.Warn("No username field found; filling password only.", zap.String("url", loginURL))
	}
	actions = append(actions, chromedp.SetValue(passwordSel, password, s.byOpt(passwordSel)))

	buttonSel := firstPresent(ctx, s.selectors.LoginButtons, s.exists)
	if buttonSel == "" {
		s.logger.Warn("No login button found on login page.", zap.String("url", loginURL))
		return false, nil
	}
	actions = append(actions, chromedp.Click(buttonSel, s.byOpt(buttonSel)))

	if err := s.run(ctx, actions); err != nil {
		return false, fmt.Errorf("failed to submit login form: %w", err)
	}
	s.settle(ctx)

	// A password field still on the page means the login form is still
	// being shown, i.e. the credentials were rejected.
	if still, _ := s.exists(ctx, passwordSel); still {
		s.logger.Warn("Password field still present after login submit.", zap.String("url", loginURL))
		return false, nil
	}

	s.logger.Info("Login flow completed.", zap.String("url", loginURL))
	return true, nil
}

// NavigateAndCapture loads a page and returns its screenshot and HTML.
func (s *Session) NavigateAndCapture(ctx context.Context, url string) (schemas.CaptureResult, error) {
	if err := s.navigate(ctx, url); err != nil {
		return schemas.CaptureResult{}, err
	}

	html, err := s.outerHTML(ctx)
	if err != nil {
		return schemas.CaptureResult{}, err
	}

	shotPath, err := s.captureScreenshot(ctx)
	if err != nil {
		// A page without a screenshot is still classifiable.
		s.logger.Warn("Failed to capture screenshot.", zap.String("url", url), zap.Error(err))
	}

	return schemas.CaptureResult{ScreenshotPath: shotPath, HTML: html}, nil
}

// SubmitURLFirst fills the initial website-URL gate and returns the URL of
// the revealed form page.
func (s *Session) SubmitURLFirst(ctx context.Context, req schemas.URLFirstRequest) (string, error) {
	if err := s.navigate(ctx, req.InitialURL); err != nil {
		return "", fmt.Errorf("failed to load url-first page: %w", err)
	}

	fieldSel := req.URLFieldSelector
	if fieldSel == "" {
		fieldSel = firstPresent(ctx, s.selectors.URLFields, s.exists)
	}
	if fieldSel == "" {
		return "", fmt.Errorf("no url input found on %s", req.InitialURL)
	}

	submitSel := req.URLSubmitSelector
	if submitSel == "" {
		submitSel = firstPresent(ctx, s.selectors.SubmitButtons, s.exists)
	}
	if submitSel == "" {
		return "", fmt.Errorf("no submit control found on %s", req.InitialURL)
	}

	if err := s.run(ctx, chromedp.Tasks{
		chromedp.SetValue(fieldSel, req.WebsiteURL, s.byOpt(fieldSel)),
		chromedp.Click(submitSel, s.byOpt(submitSel)),
	}); err != nil {
		return "", fmt.Errorf("failed to submit website url: %w", err)
	}
	s.settle(ctx)

	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read post-submit location: %w", err)
	}

	s.logger.Info("URL-first step completed.", zap.String("revealed_url", location))
	return location, nil
}

// FillAndSubmit fills the mapped fields, walks intermediate steps on
// multi-step forms, captures a screenshot of the filled form, submits, and
// returns the resulting page state.
func (s *Session) FillAndSubmit(ctx context.Context, req schemas.FillRequest) (schemas.SubmitOutcome, error) {
	if req.URL != "" {
		if err := s.navigate(ctx, req.URL); err != nil {
			return schemas.SubmitOutcome{}, fmt.Errorf("failed to load form page: %w", err)
		}
	}

	steps := 1
	if req.IsMultiStep && req.StepCount > 1 {
		steps = req.StepCount
	}

	for step := 1; step <= steps; step++ {
		s.fillVisibleFields(ctx, req.FieldValues)

		if step < steps {
			nextSel := firstPresent(ctx, s.selectors.NextButtons, s.exists)
			if nextSel == "" {
				// Fewer steps than declared; fall through to submit.
				s.logger.Warn("No next-step control found; proceeding to submit.", zap.Int("step", step))
				break
			}
			if err := s.run(ctx, chromedp.Click(nextSel, s.byOpt(nextSel))); err != nil {
				return schemas.SubmitOutcome{}, fmt.Errorf("failed to advance to step %d: %w", step+1, err)
			}
			s.settle(ctx)
		}
	}

	// Screenshot of the filled form before the final submit: this is the
	// evidence record of what was sent.
	shotPath, err := s.captureScreenshot(ctx)
	if err != nil {
		s.logger.Warn("Failed to capture pre-submit screenshot.", zap.Error(err))
	}

	submitSel := req.SubmitButtonSelector
	if submitSel == "" || !s.mustExist(ctx, submitSel) {
		submitSel = firstPresent(ctx, s.selectors.SubmitButtons, s.exists)
	}
	if submitSel == "" {
		return schemas.SubmitOutcome{}, fmt.Errorf("no submit control found on form page")
	}

	if err := s.run(ctx, chromedp.Click(submitSel, s.byOpt(submitSel))); err != nil {
		return schemas.SubmitOutcome{}, fmt.Errorf("failed to click submit: %w", err)
	}
	s.settle(ctx)

	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return schemas.SubmitOutcome{}, fmt.Errorf("failed to read post-submit location: %w", err)
	}
	html, err := s.outerHTML(ctx)
	if err != nil {
		return schemas.SubmitOutcome{}, err
	}

	return schemas.SubmitOutcome{
		FinalURL:       location,
		HTML:           html,
		ScreenshotPath: shotPath,
	}, nil
}

// fillVisibleFields sets every mapped field that exists on the current page.
// Individual field failures are logged and skipped so one bad selector does
// not sink the whole attempt.
func (s *Session) fillVisibleFields(ctx context.Context, values map[string]string) {
	for selector, value := range values {
		found, err := s.exists(ctx, selector)
		if err != nil || !found {
			continue
		}
		if err := s.run(ctx, chromedp.SetValue(selector, value, s.byOpt(selector))); err != nil {
			s.logger.Warn("Failed to fill field.", zap.String("selector", selector), zap.Error(err))
		}
	}
}

func (s *Session) navigate(ctx context.Context, url string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.run(opCtx, chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	s.settle(ctx)
	return nil
}

// settle gives client-side rendering a moment to finish after a navigation
// or a page-mutating click.
func (s *Session) settle(ctx context.Context) {
	if s.cfg.PostLoadWait <= 0 {
		return
	}
	select {
	case <-time.After(s.cfg.PostLoadWait):
	case <-ctx.Done():
	}
}

func (s *Session) outerHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

func (s *Session) captureScreenshot(ctx context.Context) (string, error) {
	if s.cfg.ScreenshotDir == "" {
		return "", nil
	}

	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return "", err
	}

	path := filepath.Join(s.cfg.ScreenshotDir, uuid.New().String()+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// exists reports whether a selector matches at least one node right now,
// without waiting for it to appear.
func (s *Session) exists(ctx context.Context, selector string) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var nodes []*cdp.Node
	err := s.run(probeCtx, chromedp.Nodes(selector, &nodes, s.byOpt(selector), chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *Session) mustExist(ctx context.Context, selector string) bool {
	found, err := s.exists(ctx, selector)
	return err == nil && found
}

func (s *Session) byOpt(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// run executes chromedp actions against the session target, honoring both
// the session lifetime and the caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
