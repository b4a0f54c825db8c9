package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/aehx/internal/shared"
)

// FeedItem is a gallery card as returned by the backend.
//
// The client never builds these. Known fields are decoded for display and
// filtering; the original object is kept so re-encoding loses nothing.
type FeedItem struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	GID            int64           `json:"gid"`
	Token          string          `json:"token"`
	ArcID          string          `json:"arcid"`
	Title          string          `json:"title"`
	Subtitle       string          `json:"subtitle"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags"`
	TagsTranslated []string        `json:"tags_translated"`
	EHURL          string          `json:"eh_url"`
	EXURL          string          `json:"ex_url"`
	LinkURL        string          `json:"link_url"`
	ThumbURL       string          `json:"thumb_url"`
	Score          float64         `json:"score"`
	Meta           json.RawMessage `json:"meta,omitempty"`

	raw json.RawMessage
}

type feedItemFields FeedItem

// UnmarshalJSON decodes the known fields and retains the full object.
func (f *FeedItem) UnmarshalJSON(data []byte) error {
	var fields feedItemFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*f = FeedItem(fields)
	f.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the object exactly as the server sent it when available.
func (f FeedItem) MarshalJSON() ([]byte, error) {
	if len(f.raw) > 0 {
		return f.raw, nil
	}
	return json.Marshal(feedItemFields(f))
}

// Key is the composite identity used for dedupe and removal.
func (f FeedItem) Key() string {
	return shared.ItemKey(f.GID, f.Token)
}

// IsEHWork reports whether the item can receive recommend feedback.
func (f FeedItem) IsEHWork() bool {
	return f.Source == SourceEHWorks && f.GID > 0 && f.Token != ""
}

// Ref returns the feedback payload for the item.
func (f FeedItem) Ref() ItemRef {
	return ItemRef{GID: f.GID, Token: f.Token, EHURL: f.EHURL, EXURL: f.EXURL}
}

// URL returns the best link to open the gallery.
func (f FeedItem) URL() string {
	switch {
	case f.LinkURL != "":
		return f.LinkURL
	case f.EHURL != "":
		return f.EHURL
	default:
		return f.EXURL
	}
}

// DisplayTags prefers translated tags when the server provided them.
func (f FeedItem) DisplayTags() []string {
	if len(f.TagsTranslated) > 0 {
		return f.TagsTranslated
	}
	return f.Tags
}

// CachedItem is a feed item stored in the local cache.
type CachedItem struct {
	Item      FeedItem
	Kind      string
	Disliked  bool
	FirstSeen time.Time
	LastSeen  time.Time
}

var _ Model = (*CachedItem)(nil)

func (c *CachedItem) ID() string           { return c.Item.Key() }
func (c *CachedItem) CreatedAt() time.Time { return c.FirstSeen }
func (c *CachedItem) UpdatedAt() time.Time { return c.LastSeen }

func (c *CachedItem) Validate() error {
	if c.Item.GID <= 0 || c.Item.Token == "" {
		return fmt.Errorf("item %q has no gid/token", c.Item.ID)
	}
	if c.Kind == "" {
		return fmt.Errorf("item %s has no feed kind", c.Item.Key())
	}
	return nil
}
