// package models defines the data model shared by the API client, the feed and chat state, and local storage
package models

import (
	"encoding/json"
	"time"
)

// Model defines the base interface for locally persisted records.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// SourceEHWorks marks items that come from the E-Hentai metadata index.
// Only these carry a gid/token pair and take part in recommend feedback.
const SourceEHWorks = "eh_works"

// ItemRef is the identity payload the recommend feedback endpoints expect.
type ItemRef struct {
	GID   int64  `json:"gid"`
	Token string `json:"token"`
	EHURL string `json:"eh_url"`
	EXURL string `json:"ex_url"`
}

// FeedPage is one cursor page of a feed endpoint.
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
	Meta       FeedMeta   `json:"meta"`
}

// FeedMeta carries the recommend expansion hint plus whatever else the server reports.
type FeedMeta struct {
	CanExpandMore bool   `json:"can_expand_more"`
	Mode          string `json:"mode,omitempty"`
}

// FeedQuery holds the query parameters of a feed page request.
type FeedQuery struct {
	Limit       int
	Cursor      string
	Depth       int
	Jitter      bool
	JitterNonce int
}

// SearchResult is the response of a text search.
type SearchResult struct {
	Items []FeedItem `json:"items"`
}

// TagSuggestions is the response of the tag suggest endpoint, ordered by relevance.
type TagSuggestions struct {
	Items []string `json:"items"`
}

// SearchRequest is the body of a text search.
type SearchRequest struct {
	Query             string   `json:"query" validate:"required"`
	Scope             string   `json:"scope"`
	Limit             int      `json:"limit" validate:"gte=1,lte=300"`
	UseLLM            bool     `json:"use_llm"`
	UILang            string   `json:"ui_lang"`
	IncludeCategories []string `json:"include_categories"`
	IncludeTags       []string `json:"include_tags"`
}

// Schedule is the backend cron table keyed by task name.
type Schedule map[string]json.RawMessage

// ChatMessage is a single turn in a chat session.
type ChatMessage struct {
	Role  string          `json:"role"`
	Text  string          `json:"text"`
	Time  string          `json:"time"`
	Stats json.RawMessage `json:"stats,omitempty"`
}

// ChatSessionInfo is a server-side session summary.
type ChatSessionInfo struct {
	SessionID  string `json:"session_id"`
	LastActive string `json:"last_active"`
	Title      string `json:"title"`
}

// ChatRequest is the body of /chat/message and /chat/stream.
type ChatRequest struct {
	SessionID string         `json:"session_id" validate:"required"`
	Text      string         `json:"text"`
	Mode      string         `json:"mode" validate:"required"`
	Intent    string         `json:"intent" validate:"omitempty,oneof=auto chat profile search report recommendation"`
	UILang    string         `json:"ui_lang"`
	Context   map[string]any `json:"context,omitempty"`
}

// ChatReply is the response of the non-streaming /chat/message call.
type ChatReply struct {
	SessionID string        `json:"session_id"`
	Message   ChatMessage   `json:"message"`
	History   []ChatMessage `json:"history"`
}

// Task is an entry in the backend task table.
type Task struct {
	TaskID      string `json:"task_id"`
	Task        string `json:"task"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	UpdatedAt   string `json:"updated_at"`
	CanStop     bool   `json:"can_stop"`
	Error       string `json:"error,omitempty"`
	Hint        string `json:"hint,omitempty"`
	TaskSummary string `json:"task_summary,omitempty"`
}

// Failed reports whether the task ended in a state the user should hear about.
func (t Task) Failed() bool {
	return t.Status == "failed" || t.Status == "timeout"
}

// User is the authenticated account.
type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// AuthStatus is the response of /auth/bootstrap.
type AuthStatus struct {
	HasUsers      bool  `json:"has_users"`
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}
