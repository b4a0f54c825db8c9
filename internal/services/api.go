// Raw passthrough requests for ad-hoc API exploration
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
//
// Unlike the typed calls, non-2xx statuses are returned as a response rather than an error.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (c *Client) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.raw(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request, with an optional JSON body, and returns the raw response.
func (c *Client) Delete(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.raw(ctx, http.MethodDelete, path, data)
}

func (c *Client) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var query url.Values
	if p, q, ok := strings.Cut(path, "?"); ok {
		parsed, err := url.ParseQuery(q)
		if err != nil {
			return nil, fmt.Errorf("invalid query: %w", err)
		}
		path, query = p, parsed
	}

	req, err := c.newRequest(ctx, method, path, query, nil)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		req.Body = io.NopCloser(strings.NewReader(string(data)))
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
