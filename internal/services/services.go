package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/shared"
)

const (
	defaultBaseURL = "http://127.0.0.1:8501/api"
	csrfHeader     = "x-csrf-token"
)

// APIError is a non-2xx response from the backend.
//
// Detail follows the backend's error envelope: either a plain string or an
// object with message and traceback fields.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Detail)
}

// Unwrap classifies the error so callers can match on sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// Client talks to the AutoEhHunter web API with a cookie session.
//
// Mutating requests carry the CSRF token once one is known. A 401 from any
// endpoint invokes OnUnauthorized before the error is returned.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	mu   sync.RWMutex
	csrf string

	// OnUnauthorized is called (at most once per response) when the server answers 401.
	OnUnauthorized func()
}

// NewClient creates a client for baseURL, which must include the /api prefix.
//
// When client is nil a fresh http.Client with its own cookie jar is used.
func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     log.Default(),
	}
}

// NewHTTPClient returns a client with a cookie jar whose transport waits at most timeout for
// response headers. There is no overall deadline, so chat and task streams may run long.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Jar: jar, Transport: transport}
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// SetLogger replaces the logger used for request tracing.
func (c *Client) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetCSRFToken sets the token sent on mutating requests. An empty token disables the header.
func (c *Client) SetCSRFToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrf = strings.TrimSpace(token)
}

// CSRFToken returns the current token.
func (c *Client) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrf
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.CSRFToken(); token != "" && mutating(method) {
		req.Header.Set(csrfHeader, token)
	}
	return req, nil
}

// send performs req and returns the response when the status is 2xx; otherwise the body is
// consumed and decoded into an [APIError].
func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.logger.Debug("api request", "method", req.Method, "url", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{Status: resp.StatusCode, Detail: errorDetail(body)}
	c.logger.Debug("api error", "method", req.Method, "url", req.URL.Path, "status", resp.StatusCode)
	return nil, apiErr
}

// do sends a JSON request and decodes a JSON response into result when result is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeJSON(resp.Body, result)
}

// decodeJSON decodes r into result; an empty body leaves result untouched.
func decodeJSON(r io.Reader, result any) error {
	if err := json.NewDecoder(r).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorDetail flattens the backend error envelope into one message.
//
// The traceback, when present, is appended after a "Traceback:" marker.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail    json.RawMessage `json:"detail"`
		Traceback string          `json:"traceback"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}

	var detail, traceback string
	var text string
	var obj struct {
		Message   string `json:"message"`
		Traceback string `json:"traceback"`
	}
	switch {
	case json.Unmarshal(envelope.Detail, &text) == nil:
		detail = text
	case json.Unmarshal(envelope.Detail, &obj) == nil:
		detail = obj.Message
		traceback = obj.Traceback
	case len(envelope.Detail) > 0:
		detail = string(envelope.Detail)
	}

	if envelope.Traceback != "" {
		traceback = envelope.Traceback
	}

	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "request failed"
	}
	if tb := strings.TrimSpace(traceback); tb != "" {
		return detail + "\n\nTraceback:\n" + tb
	}
	return detail
}
