// Package agent implements the autonomous-agent submission strategy: the
// whole browsing flow for one attempt is delegated to a hosted browsing
// agent through its task API, and only the final narrative comes back.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/listforge/listforge/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TaskRunner runs one natural-language browsing task to completion.
type TaskRunner interface {
	RunTask(ctx context.Context, prompt string) (string, error)
}

// Client talks to the hosted browsing-agent API: create a task, poll until
// it reaches a terminal state, fetch its output.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cfg        config.AgentConfig
	logger     *zap.Logger
}

var _ TaskRunner = (*Client)(nil)

type runTaskRequest struct {
	Task string `json:"task"`
}

type runTaskResponse struct {
	ID string `json:"id"`
}

type taskStatusResponse struct {
	Status string `json:"status"`
}

type taskDetailResponse struct {
	Output string `json:"output"`
}

func NewClient(cfg config.AgentConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent API key is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("agent endpoint is required")
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Named("agent_client"),
	}, nil
}

// RunTask creates a task and polls until the agent finishes or the task
// timeout elapses. The returned string is the agent's final output.
func (c *Client) RunTask(ctx context.Context, prompt string) (string, error) {
	taskCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	defer cancel()

	taskID, err := c.createTask(taskCtx, prompt)
	if err != nil {
		return "", err
	}
	c.logger.Info("Agent task created.", zap.String("task_id", taskID))

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-taskCtx.Done():
			return "", fmt.Errorf("agent task %s did not finish in time: %w", taskID, taskCtx.Err())
		case <-ticker.C:
		}

		status, err := c.taskStatus(taskCtx, taskID)
		if err != nil {
			c.logger.Warn("Agent status poll failed.", zap.String("task_id", taskID), zap.Error(err))
			continue
		}

		switch status {
		case "finished":
			return c.taskOutput(taskCtx, taskID)
		case "failed", "stopped":
			output, _ := c.taskOutput(taskCtx, taskID)
			return output, fmt.Errorf("agent task %s ended with status %q", taskID, status)
		}
	}
}

func (c *Client) createTask(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(runTaskRequest{Task: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal task request: %w", err)
	}

	var taskID string
	operation := func() error {
		respBody, err := c.do(ctx, http.MethodPost, "/run-task", bytes.NewReader(body))
		if err != nil {
			return err
		}
		var resp runTaskResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode task response: %w", err))
		}
		if resp.ID == "" {
			return backoff.Permanent(fmt.Errorf("agent API returned no task id"))
		}
		taskID = resp.ID
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 1 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return taskID, nil
}

func (c *Client) taskStatus(ctx context.Context, taskID string) (string, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/task/"+taskID+"/status", nil)
	if err != nil {
		return "", err
	}
	var resp taskStatusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		// Some deployments return the bare status as a JSON string.
		var bare string
		if err2 := json.Unmarshal(respBody, &bare); err2 == nil {
			return bare, nil
		}
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}
	return resp.Status, nil
}

func (c *Client) taskOutput(ctx context.Context, taskID string) (string, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/task/"+taskID, nil)
	if err != nil {
		return "", err
	}
	var resp taskDetailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode task detail: %w", err)
	}
	return resp.Output, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build agent request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("agent API error: status %d, body: %s", resp.StatusCode, string(respBody))
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}
	return respBody, nil
}
