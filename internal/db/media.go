package db

import (
	"fmt"
	"time"
)

// Media kinds.
const (
	MediaKindImage = "image"
	MediaKindFile  = "file"
)

// Media is an uploaded asset in the media or file library.
type Media struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Filename   string    `json:"filename"`
	StoredName string    `json:"stored_name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateMedia records an uploaded asset.
func (db *DB) CreateMedia(m *Media) error {
	if m.Kind != MediaKindImage && m.Kind != MediaKindFile {
		return fmt.Errorf("invalid media kind %q", m.Kind)
	}
	m.CreatedAt = time.Now().UTC()
	result, err := db.Exec(`
		INSERT INTO media (kind, filename, stored_name, url, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Kind, m.Filename, m.StoredName, m.URL, m.Size, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating media: %w", err)
	}
	if m.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	return nil
}

// ListMedia returns the assets of kind, newest first. An empty kind lists all.
func (db *DB) ListMedia(kind string) ([]*Media, error) {
	rows, err := db.Query(`
		SELECT id, kind, filename, stored_name, url, size, created_at
		FROM media WHERE ? = '' OR kind = ? ORDER BY id DESC
	`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("querying media: %w", err)
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		m := &Media{}
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Kind, &m.Filename, &m.StoredName, &m.URL, &m.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning media: %w", err)
		}
		if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating media: %w", err)
	}
	return out, nil
}
