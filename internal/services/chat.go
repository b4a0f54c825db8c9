package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/stream"
)

// EditRequest is the body of /chat/message/edit.
type EditRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	Index      int    `json:"index" validate:"gte=0"`
	Text       string `json:"text" validate:"required"`
	Regenerate bool   `json:"regenerate"`
}

// StreamChat posts req to /chat/stream and delivers each decoded event to fn as it arrives.
//
// It returns nil once the body ends; whether a done or error event was seen
// is for the caller to judge. A non-2xx status fails before any event is
// delivered, and a read error partway through is wrapped in
// [shared.ErrStreamFailed].
func (c *Client) StreamChat(ctx context.Context, req models.ChatRequest, fn func(stream.Event)) error {
	if err := shared.Validate(req); err != nil {
		return err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", nil, req)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStreamFailed, err)
	}
	defer resp.Body.Close()

	if resp.Body == nil || resp.Body == http.NoBody {
		return fmt.Errorf("%w: empty response body", shared.ErrStreamFailed)
	}

	if err := stream.Events(resp.Body, fn); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStreamFailed, err)
	}
	return nil
}

// SendMessage posts a message and waits for the whole reply.
func (c *Client) SendMessage(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error) {
	if err := shared.Validate(req); err != nil {
		return nil, err
	}

	var reply models.ChatReply
	if err := c.do(ctx, http.MethodPost, "/chat/message", nil, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ChatHistory returns the transcript of a session.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	v := url.Values{}
	v.Set("session_id", sessionID)

	var resp struct {
		History []models.ChatMessage `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/history", v, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// ChatSessions lists the server-side sessions of the current user.
func (c *Client) ChatSessions(ctx context.Context) ([]models.ChatSessionInfo, error) {
	var resp struct {
		Sessions []models.ChatSessionInfo `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/sessions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// EditMessage rewrites the message at req.Index, optionally regenerating the reply, and
// returns the updated transcript.
func (c *Client) EditMessage(ctx context.Context, req EditRequest) ([]models.ChatMessage, error) {
	if err := shared.Validate(req); err != nil {
		return nil, err
	}

	var resp struct {
		History []models.ChatMessage `json:"history"`
	}
	if err := c.do(ctx, http.MethodPut, "/chat/message/edit", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// DeleteMessage removes the message at index and returns the updated transcript.
func (c *Client) DeleteMessage(ctx context.Context, sessionID string, index int) ([]models.ChatMessage, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", shared.ErrInvalidArgument, index)
	}

	body := struct {
		SessionID string `json:"session_id"`
		Index     int    `json:"index"`
	}{sessionID, index}

	var resp struct {
		History []models.ChatMessage `json:"history"`
	}
	if err := c.do(ctx, http.MethodDelete, "/chat/message", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// DeleteSession removes a session and its transcript on the server.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	v := url.Values{}
	v.Set("session_id", sessionID)
	return c.do(ctx, http.MethodDelete, "/chat/session", v, nil, nil)
}
