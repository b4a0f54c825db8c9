package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// ItemCacheAdapter implements tasks.ItemCacher using ItemRepository.
//
// Items already cached are refreshed in place through the item_key primary key.
type ItemCacheAdapter struct {
	repo *ItemRepository
}

// NewItemCacheAdapter creates a new ItemCacheAdapter with the given repository
func NewItemCacheAdapter(repo *ItemRepository) *ItemCacheAdapter {
	return &ItemCacheAdapter{repo: repo}
}

// CacheItems stores one page of a feed and returns how many items were written.
func (a *ItemCacheAdapter) CacheItems(kind string, items []models.FeedItem) (int, error) {
	n, err := a.repo.Upsert(kind, items)
	if err != nil {
		return 0, fmt.Errorf("failed to cache items: %w", err)
	}
	return n, nil
}

// HistoryLoader fetches a transcript from the server.
type HistoryLoader func(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

// SessionCache keeps chat transcripts in the local database.
//
// It implements chat.Saver for the chat store and tasks.TranscriptSource for
// transcript exports.
type SessionCache struct {
	repo   *SessionRepository
	remote HistoryLoader
}

// NewSessionCache creates a SessionCache. When remote is set, Transcript
// refreshes the cached copy from the server before returning it.
func NewSessionCache(repo *SessionRepository, remote HistoryLoader) *SessionCache {
	return &SessionCache{repo: repo, remote: remote}
}

// Save stores the session and its messages.
func (c *SessionCache) Save(session *models.ChatSession) error {
	return c.repo.Save(session)
}

// Delete forgets a session. Sessions that were never cached are not an error.
func (c *SessionCache) Delete(id string) error {
	if err := c.repo.Delete(id); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Transcript returns the session with the given ID.
func (c *SessionCache) Transcript(ctx context.Context, id string) (*models.ChatSession, error) {
	if c.remote == nil {
		return c.repo.Get(id)
	}

	messages, err := c.remote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript %s: %w", id, err)
	}

	session, err := c.repo.Get(id)
	if errors.Is(err, shared.ErrSessionNotFound) {
		session = models.NewChatSession(id)
	} else if err != nil {
		return nil, err
	}

	session.Messages = messages
	session.Updated = time.Now().UTC()
	if err := c.repo.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}
