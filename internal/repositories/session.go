package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// SessionRepository implements models.Repository[*models.ChatSession] for cached chat transcripts.
//
// Messages live in their own table ordered by position and are rewritten as a
// whole on every save, matching how the server returns transcripts.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session with its messages
func (r *SessionRepository) Create(session *models.ChatSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return inTx(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO chat_sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			session.SessionID, session.Title, session.Created, session.Updated,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("session already cached: %s", session.SessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return writeMessages(tx, session)
	})
}

// Save inserts or replaces a session and its messages
func (r *SessionRepository) Save(session *models.ChatSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if session.Created.IsZero() {
		session.Created = time.Now().UTC()
	}
	if session.Updated.IsZero() {
		session.Updated = session.Created
	}

	return inTx(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO chat_sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
		`, session.SessionID, session.Title, session.Created, session.Updated)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return writeMessages(tx, session)
	})
}

// writeMessages replaces the stored transcript of session.
func writeMessages(tx *sql.Tx, session *models.ChatSession) error {
	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, session.SessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chat_messages (session_id, position, role, text, sent_at, stats) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range session.Messages {
		var stats sql.NullString
		if len(m.Stats) > 0 && string(m.Stats) != "null" {
			stats = sql.NullString{String: string(m.Stats), Valid: true}
		}
		if _, err := stmt.Exec(session.SessionID, i, m.Role, m.Text, m.Time, stats); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a session and its messages by ID
func (r *SessionRepository) Get(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.QueryRow(
		`SELECT id, title, created_at, updated_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&session.SessionID, &session.Title, &session.Created, &session.Updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	messages, err := r.messages(id)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return &session, nil
}

func (r *SessionRepository) messages(id string) ([]models.ChatMessage, error) {
	rows, err := r.db.Query(
		`SELECT role, text, sent_at, stats FROM chat_messages WHERE session_id = ? ORDER BY position ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var (
			m     models.ChatMessage
			stats sql.NullString
		)
		if err := rows.Scan(&m.Role, &m.Text, &m.Time, &stats); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if stats.Valid {
			m.Stats = json.RawMessage(stats.String)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

// Update changes the title of a session and replaces its messages
func (r *SessionRepository) Update(session *models.ChatSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	session.Updated = time.Now().UTC()

	return inTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
			session.Title, session.Updated, session.SessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if err := expectRows(result, shared.ErrSessionNotFound, session.SessionID); err != nil {
			return err
		}
		return writeMessages(tx, session)
	})
}

// Delete removes a session; its messages go with it through the foreign key.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRows(result, shared.ErrSessionNotFound, id)
}

// List retrieves sessions with their messages, most recently updated first.
//
// Supported criteria: "limit" (int).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.ChatSession, error) {
	query := `SELECT id, title, created_at, updated_at FROM chat_sessions ORDER BY updated_at DESC, id ASC`
	query, args := limitClause(query, nil, criteria)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	var sessions []*models.ChatSession
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(&s.SessionID, &s.Title, &s.Created, &s.Updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// messages are read after the cursor closes so an in-memory database with a
	// single connection does not deadlock
	for _, s := range sessions {
		messages, err := r.messages(s.SessionID)
		if err != nil {
			return nil, err
		}
		s.Messages = messages
	}
	return sessions, nil
}
