package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/aehx/internal/models"
)

// ItemRepository implements models.Repository[*models.CachedItem] for the feed item cache.
//
// Items are keyed by gid and lowercased token, so a gallery seen in several
// feeds is stored once under the feed it was last seen in.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new ItemRepository with the given database connection
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `item_key, kind, payload, disliked, first_seen_at, last_seen_at`

// Create inserts a new item, failing when the key is already cached
func (r *ItemRepository) Create(item *models.CachedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := json.Marshal(item.Item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	now := time.Now().UTC()
	if item.FirstSeen.IsZero() {
		item.FirstSeen = now
	}
	if item.LastSeen.IsZero() {
		item.LastSeen = now
	}

	query := `
		INSERT INTO feed_items (item_key, gid, token, kind, source, title, category, payload, disliked, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		item.ID(),
		item.Item.GID,
		item.Item.Token,
		item.Kind,
		item.Item.Source,
		item.Item.Title,
		item.Item.Category,
		string(payload),
		item.Disliked,
		item.FirstSeen,
		item.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// Upsert stores every item of one feed page, refreshing last_seen_at for items
// already cached. Items without a gid/token pair are skipped; the number stored
// is returned.
func (r *ItemRepository) Upsert(kind string, items []models.FeedItem) (int, error) {
	query := `
		INSERT INTO feed_items (item_key, gid, token, kind, source, title, category, payload, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET
			kind = excluded.kind,
			source = excluded.source,
			title = excluded.title,
			category = excluded.category,
			payload = excluded.payload,
			last_seen_at = excluded.last_seen_at
	`

	stored := 0
	err := inTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, it := range items {
			if it.GID <= 0 || it.Token == "" {
				continue
			}
			payload, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("failed to encode item %s: %w", it.Key(), err)
			}
			if _, err := stmt.Exec(it.Key(), it.GID, it.Token, kind, it.Source, it.Title, it.Category, string(payload), now, now); err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", it.Key(), err)
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// Get retrieves an item by its key
func (r *ItemRepository) Get(key string) (*models.CachedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM feed_items WHERE item_key = ?`
	item, err := r.scan(r.db.QueryRow(query, key))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errNotFound, key)
	}
	return item, err
}

// Update rewrites the stored copy of an item
func (r *ItemRepository) Update(item *models.CachedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := json.Marshal(item.Item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	item.LastSeen = time.Now().UTC()

	query := `
		UPDATE feed_items
		SET kind = ?, title = ?, category = ?, payload = ?, disliked = ?, last_seen_at = ?
		WHERE item_key = ?
	`

	result, err := r.db.Exec(query, item.Kind, item.Item.Title, item.Item.Category, string(payload), item.Disliked, item.LastSeen, item.ID())
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return expectRows(result, errNotFound, item.ID())
}

// MarkDisliked flags a cached item as disliked
func (r *ItemRepository) MarkDisliked(key string) error {
	result, err := r.db.Exec(`UPDATE feed_items SET disliked = 1 WHERE item_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to mark item: %w", err)
	}
	return expectRows(result, errNotFound, key)
}

// Delete removes an item by key
func (r *ItemRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM feed_items WHERE item_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return expectRows(result, errNotFound, key)
}

// Clear removes every item of kind, or all items when kind is empty, and
// returns how many were removed.
func (r *ItemRepository) Clear(kind string) (int64, error) {
	query, args := `DELETE FROM feed_items`, []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear items: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves cached items, most recently seen first.
//
// Supported criteria: "kind" (string), "category" (string), "disliked" (bool), "limit" (int).
func (r *ItemRepository) List(criteria map[string]any) ([]*models.CachedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM feed_items WHERE 1 = 1`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	if category, ok := criteria["category"].(string); ok && category != "" {
		query += " AND lower(category) = lower(?)"
		args = append(args, category)
	}

	if disliked, ok := criteria["disliked"].(bool); ok {
		query += " AND disliked = ?"
		args = append(args, disliked)
	}

	query += " ORDER BY last_seen_at DESC, item_key ASC"
	query, args = limitClause(query, args, criteria)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.CachedItem
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// Count returns the number of cached items per feed kind.
func (r *ItemRepository) Count() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT kind, COUNT(*) FROM feed_items GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row into a [models.CachedItem]
func (r *ItemRepository) scan(row scanner) (*models.CachedItem, error) {
	var (
		key       string
		kind      string
		payload   string
		disliked  bool
		firstSeen time.Time
		lastSeen  time.Time
	)

	if err := row.Scan(&key, &kind, &payload, &disliked, &firstSeen, &lastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	var item models.FeedItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", key, err)
	}

	return &models.CachedItem{
		Item:      item,
		Kind:      kind,
		Disliked:  disliked,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}, nil
}
