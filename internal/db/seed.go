package db

import (
	"context"
	"fmt"
)

// Seeder fills a migrated database with data.
type Seeder interface {
	Seed(ctx context.Context, database *DB) error
}

// SeederFunc adapts a function to the Seeder interface.
type SeederFunc func(ctx context.Context, database *DB) error

// Seed calls f.
func (f SeederFunc) Seed(ctx context.Context, database *DB) error {
	return f(ctx, database)
}

// Seed runs seeders in order and stops at the first failure.
func (db *DB) Seed(ctx context.Context, seeders ...Seeder) error {
	for i, s := range seeders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeder %d: %w", i, err)
		}
	}
	return nil
}

// WelcomeSlug is the slug of the page created by DefaultSeeder.
const WelcomeSlug = "welcome"

// DefaultSeeder creates the published welcome page if it does not exist yet.
var DefaultSeeder Seeder = SeederFunc(func(ctx context.Context, database *DB) error {
	var exists int
	err := database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE module = 'pages' AND slug = ?`, WelcomeSlug).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking welcome page: %w", err)
	}
	if exists > 0 {
		return nil
	}
	return database.CreateItem(&Item{
		Module:    "pages",
		Title:     "Welcome to Quill",
		Slug:      WelcomeSlug,
		Data:      map[string]string{"body": "Your site is ready."},
		Published: true,
	})
})
