package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/desertthunder/aehx/internal/models"
)

const keepaliveTimeout = 5 * time.Second

// Feedback is the body of the touch and dislike endpoints.
type Feedback struct {
	models.ItemRef
	Weight float64 `json:"weight"`
}

// ImpressionBatch is the body of the impressions endpoint.
type ImpressionBatch struct {
	Items  []models.ItemRef `json:"items"`
	Weight float64          `json:"weight"`
}

func feedValues(q models.FeedQuery, recommend bool) url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if recommend {
		depth := max(q.Depth, 1)
		v.Set("depth", strconv.Itoa(depth))
		v.Set("jitter", strconv.FormatBool(q.Jitter))
		v.Set("jitter_nonce", strconv.Itoa(q.JitterNonce))
	}
	return v
}

// History fetches one page of the reading history feed.
func (c *Client) History(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error) {
	var page models.FeedPage
	if err := c.do(ctx, http.MethodGet, "/home/history", feedValues(q, false), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Recommend fetches one page of the recommend feed.
//
// Depth 1 is served by /home/recommend; deeper pools come from /recommend/items.
func (c *Client) Recommend(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error) {
	path := "/home/recommend"
	if q.Depth > 1 {
		path = "/recommend/items"
	}

	var page models.FeedPage
	if err := c.do(ctx, http.MethodGet, path, feedValues(q, true), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchText runs a text search with optional category and tag filters.
func (c *Client) SearchText(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	if req.Scope == "" {
		req.Scope = "both"
	}
	if req.IncludeCategories == nil {
		req.IncludeCategories = []string{}
	}
	if req.IncludeTags == nil {
		req.IncludeTags = []string{}
	}

	var result models.SearchResult
	if err := c.do(ctx, http.MethodPost, "/home/search/text", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TagSuggest returns tag completions for q.
func (c *Client) TagSuggest(ctx context.Context, q string, limit int, uiLang string) ([]string, error) {
	v := url.Values{}
	v.Set("q", strings.TrimSpace(q))
	v.Set("limit", strconv.Itoa(limit))
	if uiLang != "" {
		v.Set("ui_lang", uiLang)
	}

	var resp models.TagSuggestions
	if err := c.do(ctx, http.MethodGet, "/home/filter/tag-suggest", v, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Impressions records that items were shown.
func (c *Client) Impressions(ctx context.Context, items []models.ItemRef, weight float64) error {
	return c.do(ctx, http.MethodPost, "/home/recommend/impressions", nil, ImpressionBatch{Items: items, Weight: weight}, nil)
}

// Dislike records negative feedback for an item.
func (c *Client) Dislike(ctx context.Context, ref models.ItemRef, weight float64) error {
	return c.do(ctx, http.MethodPost, "/home/recommend/dislike", nil, Feedback{ItemRef: ref, Weight: weight}, nil)
}

// Touch records that the user opened an item.
func (c *Client) Touch(ctx context.Context, ref models.ItemRef, weight float64) error {
	return c.do(ctx, http.MethodPost, "/home/recommend/touch", nil, Feedback{ItemRef: ref, Weight: weight}, nil)
}

// TouchKeepalive records a touch with a short deadline of its own, then retries once
// as a regular [Client.Touch] when that attempt never reached the server.
//
// A request that was written is not retried, whether it failed with an API
// error or ran out of time waiting for the response, since the backend may
// already have counted it. It is meant for open actions that hand control to
// the browser, where the caller does not want to wait on a slow backend.
func (c *Client) TouchKeepalive(ctx context.Context, ref models.ItemRef, weight float64) error {
	var sent atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				sent.Store(true)
			}
		},
	}
	quick, cancel := context.WithTimeout(httptrace.WithClientTrace(ctx, trace), keepaliveTimeout)
	err := c.Touch(quick, ref, weight)
	cancel()
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if sent.Load() || errors.As(err, &apiErr) || ctx.Err() != nil {
		return err
	}
	c.logger.Debug("keepalive touch not sent, retrying", "gid", ref.GID, "error", err)
	return c.Touch(ctx, ref, weight)
}

// ClearTouches removes all recorded opens from the recommend profile.
func (c *Client) ClearTouches(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/home/recommend/touch", nil, nil, nil)
}

// ResetProfile clears the learned recommend profile.
func (c *Client) ResetProfile(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/home/recommend/profile", nil, nil, nil)
}
