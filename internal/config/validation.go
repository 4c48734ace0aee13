package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if _, err := url.ParseRequestURI(cfg.App.URL); err != nil || cfg.App.URL == "" {
		errs = append(errs, "app.url must be an absolute URL")
	}
	if strings.Trim(cfg.Admin.Path, "/") == "" {
		errs = append(errs, "admin.path cannot be empty")
	}
	if !strings.HasPrefix(cfg.Admin.LoginRedirectPath, "/") {
		errs = append(errs, "admin.login_redirect_path must start with /")
	}
	if len(cfg.Admin.Locales) == 0 {
		errs = append(errs, "admin.locales must list at least one locale")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		errs = append(errs, "auth.bcrypt_cost must be between 4 and 31")
	}
	if cfg.Auth.SessionCookie == "" {
		errs = append(errs, "auth.session_cookie cannot be empty")
	}
	if cfg.Database.Driver != "sqlite" {
		errs = append(errs, "database.driver must be sqlite")
	}
	if cfg.Database.Target == "" {
		errs = append(errs, "database.target cannot be empty")
	}
	if !oneOf(cfg.Media.Endpoint, "local") {
		errs = append(errs, "media.endpoint must be local")
	}
	if !oneOf(cfg.Files.Endpoint, "local") {
		errs = append(errs, "files.endpoint must be local")
	}
	if cfg.Imaging.UseSignedURLs && cfg.Imaging.SignKey == "" {
		errs = append(errs, "imaging.sign_key is required when imaging.use_signed_urls is set")
	}
	if !oneOf(strings.ToLower(cfg.Log.Level), "debug", "info", "warn", "warning", "error") {
		errs = append(errs, "log.level must be one of debug|info|warn|error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(val string, options ...string) bool {
	for _, o := range options {
		if val == o {
			return true
		}
	}
	return false
}
