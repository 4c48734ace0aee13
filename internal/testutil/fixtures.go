package testutil

import (
	"regexp"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Dicklesworthstone/quill/internal/db"
)

// SuperAdmin is the privileged identity a harness installs. It mirrors the
// persisted admin user and keeps the plaintext password for login forms.
type SuperAdmin struct {
	ID                  int64
	Name                string
	Email               string
	PasswordHash        string
	UnencryptedPassword string
}

var emailUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

func newSuperAdmin(faker *gofakeit.Faker) *SuperAdmin {
	local := strings.Trim(emailUnsafe.ReplaceAllString(strings.ToLower(faker.Username()), ""), ".")
	if local == "" {
		local = "admin"
	}
	return &SuperAdmin{
		Name:                faker.Name(),
		Email:               local + "@quill.test",
		UnencryptedPassword: faker.Password(true, true, true, false, false, 16),
	}
}

// ItemOption customizes a test item.
type ItemOption func(*db.Item)

// MakeItem creates and inserts a published item of module.
func MakeItem(t testing.TB, database *db.DB, module string, opts ...ItemOption) *db.Item {
	t.Helper()

	it := &db.Item{
		Module:    module,
		Title:     gofakeit.Sentence(4),
		Data:      map[string]string{},
		Published: true,
	}
	for _, opt := range opts {
		opt(it)
	}
	RequireNoError(t, database.CreateItem(it), "create item")
	return it
}

// WithTitle sets the item title.
func WithTitle(title string) ItemOption {
	return func(it *db.Item) { it.Title = title }
}

// WithData sets one data field.
func WithData(key, value string) ItemOption {
	return func(it *db.Item) { it.Data[key] = value }
}

// Draft marks the item unpublished.
func Draft() ItemOption {
	return func(it *db.Item) { it.Published = false }
}
