package models

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthState is the saved login for one API base URL.
type AuthState struct {
	BaseURL   string
	Username  string
	CSRFToken string
	Cookies   []*http.Cookie
	Updated   time.Time
}

var _ Model = (*AuthState)(nil)

func (a *AuthState) ID() string           { return a.BaseURL }
func (a *AuthState) CreatedAt() time.Time { return a.Updated }
func (a *AuthState) UpdatedAt() time.Time { return a.Updated }

func (a *AuthState) Validate() error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("base url is required")
	}
	return nil
}
