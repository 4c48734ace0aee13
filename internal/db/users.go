package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is an admin user's privilege level.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
)

// ErrUserNotFound is returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when creating a user whose email is already taken.
var ErrUserExists = errors.New("a user with this email already exists")

// User is an admin console account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Locale       string    `json:"locale"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser inserts a new admin user and fills in ID and CreatedAt.
func (db *DB) CreateUser(u *User) error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password_hash is required")
	}
	if u.Role == "" {
		u.Role = RoleAdmin
	}
	if u.Locale == "" {
		u.Locale = "en"
	}
	u.CreatedAt = time.Now().UTC()

	result, err := db.Exec(`
		INSERT INTO admin_users (name, email, password_hash, role, locale, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Locale, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	u.ID = id
	return nil
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(id int64) (*User, error) {
	row := db.QueryRow(`
		SELECT id, name, email, password_hash, role, locale, created_at
		FROM admin_users WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	row := db.QueryRow(`
		SELECT id, name, email, password_hash, role, locale, created_at
		FROM admin_users WHERE email = ?
	`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by ID.
func (db *DB) ListUsers() ([]*User, error) {
	rows, err := db.Query(`
		SELECT id, name, email, password_hash, role, locale, created_at
		FROM admin_users ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of admin users.
func (db *DB) CountUsers() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// TruncateUsers deletes every admin user (sessions cascade) and resets the ID
// sequence. The raw driver error is returned when the table does not exist;
// see IsMissingTable.
func (db *DB) TruncateUsers() error {
	if _, err := db.Exec(`DELETE FROM admin_users`); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM sqlite_sequence WHERE name = 'admin_users'`); err != nil {
		return fmt.Errorf("resetting user sequence: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var role, createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Locale, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = Role(role)
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return u, nil
}
