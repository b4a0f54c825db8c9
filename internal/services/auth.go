package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// LoginResult is the response of /auth/login.
type LoginResult struct {
	OK      bool         `json:"ok"`
	User    *models.User `json:"user"`
	Session struct {
		CSRFToken string `json:"csrf_token"`
		ExpiresAt string `json:"expires_at"`
	} `json:"session"`
}

// Bootstrap reports whether the backend has accounts and whether the current session is valid.
func (c *Client) Bootstrap(ctx context.Context) (*models.AuthStatus, error) {
	var status models.AuthStatus
	if err := c.do(ctx, http.MethodGet, "/auth/bootstrap", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Login opens a session and adopts the CSRF token it returns.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", shared.ErrMissingArgument)
	}

	body := map[string]string{"username": username, "password": password}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if result.Session.CSRFToken != "" {
		c.SetCSRFToken(result.Session.CSRFToken)
	} else if _, err := c.RefreshCSRF(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout ends the session and forgets the CSRF token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.SetCSRFToken("")
	return err
}

// Me returns the user of the current session.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return resp.User, nil
}

// RefreshCSRF fetches the token for the current session and adopts it.
func (c *Client) RefreshCSRF(ctx context.Context) (string, error) {
	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/csrf", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.CSRFToken == "" {
		return "", shared.ErrMissingCSRF
	}
	c.SetCSRFToken(resp.CSRFToken)
	return resp.CSRFToken, nil
}

// Cookies returns the session cookies the jar holds for the API origin.
func (c *Client) Cookies() []*http.Cookie {
	if c.httpClient.Jar == nil {
		return nil
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

// SetCookies installs cookies for the API origin, e.g. a persisted or imported session.
func (c *Client) SetCookies(cookies []*http.Cookie) error {
	if c.httpClient.Jar == nil {
		return fmt.Errorf("%w: http client has no cookie jar", shared.ErrUnsupported)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	for _, ck := range cookies {
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.httpClient.Jar.SetCookies(u, cookies)
	return nil
}

// ImportSession adopts a session captured from a browser "copy as cURL" export.
func (c *Client) ImportSession(session *shared.BrowserSession) error {
	if session == nil {
		return shared.ErrMissingArgument
	}
	cookies, err := session.Cookies()
	if err != nil {
		return err
	}
	if err := c.SetCookies(cookies); err != nil {
		return err
	}
	if session.CSRFToken != "" {
		c.SetCSRFToken(session.CSRFToken)
	}
	return nil
}
