package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session is not found or already ended.
var ErrSessionNotFound = errors.New("session not found")

// Session is a signed-in admin console session.
type Session struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// CreateSession starts a new session for userID.
func (db *DB) CreateSession(userID int64) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	_, err := db.Exec(`
		INSERT INTO admin_sessions (id, user_id, created_at, last_active_at, ended_at)
		VALUES (?, ?, ?, ?, NULL)
	`, s.ID, s.UserID, formatTime(s.CreatedAt), formatTime(s.LastActiveAt))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

// GetActiveSession retrieves a session that has not ended.
func (db *DB) GetActiveSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, user_id, created_at, last_active_at, ended_at
		FROM admin_sessions WHERE id = ? AND ended_at IS NULL
	`, id)

	s := &Session{}
	var createdAt, lastActiveAt string
	var endedAt sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &createdAt, &lastActiveAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	var err error
	if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if s.LastActiveAt, err = parseTime("last_active_at", lastActiveAt); err != nil {
		return nil, err
	}
	return s, nil
}

// TouchSession updates last_active_at for an active session.
func (db *DB) TouchSession(id string) error {
	return db.updateActiveSession(`UPDATE admin_sessions SET last_active_at = ? WHERE id = ? AND ended_at IS NULL`, id)
}

// EndSession marks a session as ended.
func (db *DB) EndSession(id string) error {
	return db.updateActiveSession(`UPDATE admin_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, id)
}

func (db *DB) updateActiveSession(query, id string) error {
	result, err := db.Exec(query, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
