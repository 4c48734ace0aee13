package testutil

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/Dicklesworthstone/quill/internal/config"
)

// Fixed values every harness configures.
const (
	TestAppURL       = "http://quill.test"
	TestAdminPath    = "quill"
	TestDatabaseFile = "database/quill.db"
)

// TestLocales are the admin locales a harness enables.
var TestLocales = []string{"en", "fr", "pt-BR"}

// TestOverrides returns the configuration overrides applied to every test
// application, with database.target set to target.
func TestOverrides(target string) map[string]any {
	return map[string]any{
		"app.url":                   TestAppURL,
		"admin.app_url":             TestAppURL,
		"admin.path":                TestAdminPath,
		"admin.login_redirect_path": "/" + TestAdminPath,
		"admin.locales":             append([]string(nil), TestLocales...),
		"features.two_factor":       true,
		"features.user_avatars":     true,
		"auth.bcrypt_cost":          bcrypt.MinCost,
		"database.driver":           "sqlite",
		"database.target":           target,
		"media.endpoint":            "local",
		"media.local_path":          "storage/uploads",
		"media.url":                 "/storage/uploads",
		"files.endpoint":            "local",
		"files.local_path":          "storage/files",
		"files.url":                 "/storage/files",
		"imaging.source_path":       "storage/uploads",
		"imaging.cache_path":        "storage/images/cache",
		"imaging.base_url":          "/img",
		"imaging.use_signed_urls":   false,
		"log.level":                 "debug",
	}
}

// TestConfig loads the configuration of a test application rooted at root.
// The project config file is honored, the user config and QUILL_* environment
// are not. extra is applied after the fixed overrides.
func TestConfig(root, target string, extra map[string]any) (config.Config, error) {
	overrides := TestOverrides(target)
	for k, v := range extra {
		overrides[k] = v
	}
	return config.Load(config.LoadOptions{
		Root:      root,
		Overrides: overrides,
		Isolated:  true,
	})
}
