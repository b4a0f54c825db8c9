package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/aehx/internal/models"
)

// AuthRepository stores the saved login per API base URL.
type AuthRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new AuthRepository with the given database connection
func NewAuthRepository(db *sql.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// storedCookie is the persisted form of an [http.Cookie]; only what the jar needs to replay it.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Save writes state, replacing any saved login for the same base URL
func (r *AuthRepository) Save(state *models.AuthState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	stored := make([]storedCookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		stored = append(stored, storedCookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain,
			Expires: c.Expires, Secure: c.Secure, HttpOnly: c.HttpOnly,
		})
	}
	cookies, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	state.Updated = time.Now().UTC()

	_, err = r.db.Exec(`
		INSERT INTO auth_state (base_url, username, csrf_token, cookies, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(base_url) DO UPDATE SET
			username = excluded.username,
			csrf_token = excluded.csrf_token,
			cookies = excluded.cookies,
			updated_at = excluded.updated_at
	`, state.BaseURL, state.Username, state.CSRFToken, string(cookies), state.Updated)
	if err != nil {
		return fmt.Errorf("failed to save auth state: %w", err)
	}
	return nil
}

// Load returns the saved login for baseURL, or nil when there is none.
//
// Cookies that have already expired are dropped.
func (r *AuthRepository) Load(baseURL string) (*models.AuthState, error) {
	var (
		state   = models.AuthState{BaseURL: baseURL}
		cookies string
	)

	err := r.db.QueryRow(
		`SELECT username, csrf_token, cookies, updated_at FROM auth_state WHERE base_url = ?`, baseURL,
	).Scan(&state.Username, &state.CSRFToken, &cookies, &state.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auth state: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(cookies), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}

	now := time.Now()
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		state.Cookies = append(state.Cookies, &http.Cookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain,
			Expires: c.Expires, Secure: c.Secure, HttpOnly: c.HttpOnly,
		})
	}
	return &state, nil
}

// Delete forgets the saved login for baseURL.
func (r *AuthRepository) Delete(baseURL string) error {
	if _, err := r.db.Exec(`DELETE FROM auth_state WHERE base_url = ?`, baseURL); err != nil {
		return fmt.Errorf("failed to delete auth state: %w", err)
	}
	return nil
}
