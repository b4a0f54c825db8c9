package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSessionTitle is the title of a session before its first message.
const DefaultSessionTitle = "New Chat"

// ChatSession is a locally cached chat session and its transcript.
type ChatSession struct {
	SessionID string
	Title     string
	Messages  []ChatMessage
	Created   time.Time
	Updated   time.Time
}

var _ Model = (*ChatSession)(nil)

// NewChatSession creates an empty session with the default title.
func NewChatSession(id string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{SessionID: id, Title: DefaultSessionTitle, Created: now, Updated: now}
}

func (s *ChatSession) ID() string           { return s.SessionID }
func (s *ChatSession) CreatedAt() time.Time { return s.Created }
func (s *ChatSession) UpdatedAt() time.Time { return s.Updated }

func (s *ChatSession) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	for i, m := range s.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
	}
	return nil
}
