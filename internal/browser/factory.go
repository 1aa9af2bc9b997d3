// internal/browser/factory.go
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/config"
)

// Factory launches one dedicated browser process per session. Sessions are
// never shared across submission attempts, so each one gets its own
// allocator and is torn down completely on Close.
type Factory struct {
	cfg       config.BrowserConfig
	selectors SelectorSet
	logger    *zap.Logger
}

var _ schemas.SessionFactory = (*Factory)(nil)

func NewFactory(cfg config.BrowserConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:       cfg,
		selectors: DefaultSelectorSet(),
		logger:    logger.Named("browser_factory"),
	}
}

// NewSession launches a fresh browser and returns a session bound to it.
func (f *Factory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	if f.cfg.ScreenshotDir != "" {
		if err := os.MkdirAll(f.cfg.ScreenshotDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	opts := f.allocatorOptions()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	sessionID := uuid.New().String()
	s := &Session{
		id:        sessionID,
		ctx:       browserCtx,
		cfg:       f.cfg,
		selectors: f.selectors,
		logger:    f.logger.With(zap.String("session_id", sessionID)),
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	// Establish the CDP connection up front so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	f.logger.Debug("Browser session launched.", zap.String("session_id", sessionID))
	return s, nil
}

func (f *Factory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(f.cfg.ViewportWidth, f.cfg.ViewportHeight),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	for _, arg := range f.cfg.Args {
		name := strings.TrimPrefix(arg, "--")
		if name == "" {
			continue
		}
		if key, value, ok := strings.Cut(name, "="); ok {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}
