package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/stream"
)

// TaskSnapshot is one frame of /tasks/stream.
type TaskSnapshot struct {
	Tasks []models.Task `json:"tasks"`
}

// Health returns the backend health report as sent.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	v := url.Values{}
	v.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	req, err := c.newRequest(ctx, http.MethodGet, "/health", v, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report map[string]any
	if err := decodeJSON(resp.Body, &report); err != nil {
		return nil, err
	}
	return report, nil
}

// Tasks lists background tasks, newest first.
func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var snap TaskSnapshot
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, nil, &snap); err != nil {
		return nil, err
	}
	return snap.Tasks, nil
}

// RunTask starts a backend task by name.
func (c *Client) RunTask(ctx context.Context, task, args string) (*models.Task, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("%w: task name", shared.ErrMissingArgument)
	}

	body := map[string]string{"task": task, "args": args}
	var resp struct {
		OK   bool        `json:"ok"`
		Task models.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/task/run", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// StopTask asks the backend to stop a running task.
func (c *Client) StopTask(ctx context.Context, taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}
	return c.do(ctx, http.MethodPost, "/task/stop", nil, map[string]string{"task_id": taskID}, nil)
}

// Schedule returns the cron table.
func (c *Client) Schedule(ctx context.Context) (models.Schedule, error) {
	var resp struct {
		Schedule models.Schedule `json:"schedule"`
	}
	if err := c.do(ctx, http.MethodGet, "/schedule", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedule, nil
}

// WatchTasks follows /tasks/stream until ctx is cancelled or the server closes the stream.
func (c *Client) WatchTasks(ctx context.Context, fn func(TaskSnapshot)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/tasks/stream", nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := stream.Values(resp.Body, fn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", shared.ErrStreamFailed, err)
	}
	return nil
}
