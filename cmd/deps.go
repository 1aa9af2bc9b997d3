// -- cmd/deps.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/agent"
	"github.com/listforge/listforge/internal/browser"
	"github.com/listforge/listforge/internal/detector"
	"github.com/listforge/listforge/internal/engine"
	"github.com/listforge/listforge/internal/llmclient"
	"github.com/listforge/listforge/internal/observability"
	"github.com/listforge/listforge/internal/security"
	"github.com/listforge/listforge/internal/store"
	"github.com/listforge/listforge/internal/workflow"
)

// deps is the wired application graph shared by the subcommands.
type deps struct {
	store    *store.Store
	manager  *workflow.Manager
	detector schemas.FormDetector
	sessions schemas.SessionFactory
	close    func()
}

// openStore connects the database and returns the store alone, for commands
// that do not need the full submission stack.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	if appConfig.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (set LISTFORGE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, appConfig.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	st, err := store.New(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}

// buildDeps wires the full stack: store, browser factory, detector, the
// configured executor strategy, and the workflow manager on top.
func buildDeps(ctx context.Context) (*deps, error) {
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := appConfig.Validate(); err != nil {
		closeStore()
		return nil, err
	}

	box, err := security.NewBox(appConfig.Security.EncryptionKey)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to initialize credential encryption: %w", err)
	}

	logger := observability.GetLogger()
	sessions := browser.NewFactory(appConfig.Browser, logger)

	llm, err := llmclient.NewGeminiClient(appConfig.LLM, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	formDetector := detector.NewAIFormDetector(llm, appConfig.LLM.Temperature)

	var executor schemas.SubmissionExecutor
	if appConfig.Workflow.UseAgent {
		runner, err := agent.NewClient(appConfig.Agent, logger)
		if err != nil {
			closeStore()
			return nil, err
		}
		executor = agent.NewExecutor(runner, box, appConfig.Workflow)
	} else {
		executor = engine.NewScriptedExecutor(sessions, formDetector, st, box, appConfig.Workflow)
	}

	return &deps{
		store:    st,
		manager:  workflow.NewManager(st, executor, appConfig.Workflow),
		detector: formDetector,
		sessions: sessions,
		close:    closeStore,
	}, nil
}
