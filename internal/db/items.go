package db

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ErrItemNotFound is returned when an item is not found.
var ErrItemNotFound = errors.New("item not found")

// ErrDuplicateSlug is returned when a module already has an item with the slug.
var ErrDuplicateSlug = errors.New("slug already used")

// Item is one record of a content module (pages, posts, ...).
type Item struct {
	ID        int64             `json:"id"`
	Module    string            `json:"module"`
	Title     string            `json:"title"`
	Slug      string            `json:"slug"`
	Data      map[string]string `json:"data"`
	Published bool              `json:"published"`
	CreatedAt time.Time         `json:"created_at"`
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe slug.
func Slugify(title string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// CreateItem inserts a new item. Slug defaults to the slugified title.
func (db *DB) CreateItem(it *Item) error {
	if it.Module == "" {
		return fmt.Errorf("module is required")
	}
	if strings.TrimSpace(it.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if it.Slug == "" {
		it.Slug = Slugify(it.Title)
	}
	if it.Data == nil {
		it.Data = map[string]string{}
	}
	data, err := json.Marshal(it.Data)
	if err != nil {
		return fmt.Errorf("encoding item data: %w", err)
	}
	it.CreatedAt = time.Now().UTC()

	result, err := db.Exec(`
		INSERT INTO items (module, title, slug, data, published, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, it.Module, it.Title, it.Slug, string(data), it.Published, formatTime(it.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateSlug, it.Slug, it.Module)
		}
		return fmt.Errorf("creating item: %w", err)
	}
	if it.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	return nil
}

// GetItem retrieves an item of module by ID.
func (db *DB) GetItem(module string, id int64) (*Item, error) {
	row := db.QueryRow(`
		SELECT id, module, title, slug, data, published, created_at
		FROM items WHERE module = ? AND id = ?
	`, module, id)
	return scanItem(row)
}

// ListItems returns every item of module, newest first.
func (db *DB) ListItems(module string) ([]*Item, error) {
	rows, err := db.Query(`
		SELECT id, module, title, slug, data, published, created_at
		FROM items WHERE module = ? ORDER BY id DESC
	`, module)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

func scanItem(row rowScanner) (*Item, error) {
	it := &Item{}
	var data, createdAt string
	err := row.Scan(&it.ID, &it.Module, &it.Title, &it.Slug, &data, &it.Published, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &it.Data); err != nil {
		return nil, fmt.Errorf("decoding item data: %w", err)
	}
	if it.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return it, nil
}
