package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// Root is the application root used to locate config/quill.toml. Defaults to CWD when empty.
	Root string
	// ConfigPath overrides the project config path if provided.
	ConfigPath string
	// Overrides are highest-priority values (dot-notated keys).
	Overrides map[string]any
	// Isolated skips the user config file and QUILL_* environment variables.
	Isolated bool
}

// Load returns the effective configuration after applying precedence:
// defaults < user (~/.quill/config.toml) < project (config/quill.toml) < env (QUILL_*) < overrides.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	root := opts.Root
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}

	if !opts.Isolated {
		if err := mergeConfigFile(v, userConfigPath()); err != nil {
			return Config{}, err
		}
	}
	if err := mergeConfigFile(v, projectConfigPath(root, opts.ConfigPath)); err != nil {
		return Config{}, err
	}
	if !opts.Isolated {
		if err := applyEnvOverrides(v); err != nil {
			return Config{}, err
		}
	}
	applyOverrides(v, opts.Overrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("app.url", def.App.URL)
	v.SetDefault("app.name", def.App.Name)
	v.SetDefault("app.debug", def.App.Debug)

	v.SetDefault("admin.app_url", def.Admin.AppURL)
	v.SetDefault("admin.path", def.Admin.Path)
	v.SetDefault("admin.login_redirect_path", def.Admin.LoginRedirectPath)
	v.SetDefault("admin.locales", def.Admin.Locales)

	v.SetDefault("features.two_factor", def.Features.TwoFactor)
	v.SetDefault("features.user_avatars", def.Features.UserAvatars)

	v.SetDefault("auth.bcrypt_cost", def.Auth.BcryptCost)
	v.SetDefault("auth.session_cookie", def.Auth.SessionCookie)

	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.target", def.Database.Target)

	setLibraryDefaults(v, "media", def.Media)
	setLibraryDefaults(v, "files", def.Files)

	v.SetDefault("imaging.source_path", def.Imaging.SourcePath)
	v.SetDefault("imaging.cache_path", def.Imaging.CachePath)
	v.SetDefault("imaging.base_url", def.Imaging.BaseURL)
	v.SetDefault("imaging.use_signed_urls", def.Imaging.UseSignedURLs)
	v.SetDefault("imaging.sign_key", def.Imaging.SignKey)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
}

func setLibraryDefaults(v *viper.Viper, prefix string, lib LibraryConfig) {
	v.SetDefault(prefix+".endpoint", lib.Endpoint)
	v.SetDefault(prefix+".local_path", lib.LocalPath)
	v.SetDefault(prefix+".url", lib.URL)
}

// mergeConfigFile merges the TOML config file if it exists.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads QUILL_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper) error {
	for _, binding := range envBindings {
		val := os.Getenv(binding.Env)
		if val == "" {
			continue
		}
		parsed, err := parseValueByKind(val, keyKinds[binding.Key])
		if err != nil {
			return fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}

// applyOverrides applies caller overrides as highest-precedence values.
func applyOverrides(v *viper.Viper, overrides map[string]any) {
	for k, val := range overrides {
		v.Set(k, val)
	}
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(root, configOverride string) (string, string) {
	return userConfigPath(), projectConfigPath(root, configOverride)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".quill", "config.toml")
}

func projectConfigPath(root, override string) string {
	if override != "" {
		return override
	}
	if root == "" {
		return filepath.Join("config", "quill.toml")
	}
	return filepath.Join(root, "config", "quill.toml")
}

// ParseValue parses a raw string into the expected type for a given config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	return parseValueByKind(raw, kind)
}

// GetValue retrieves a dot-notated value from the Config.
func GetValue(cfg Config, key string) (any, bool) {
	if _, ok := keyKinds[key]; !ok {
		return nil, false
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, false
	}
	var tree map[string]any
	if _, err := toml.Decode(string(data), &tree); err != nil {
		return nil, false
	}
	var current any = tree
	for _, seg := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return current, true
}

// WriteValue sets a single key/value into the specified TOML config file (creating it if needed).
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	var existing map[string]any
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &existing); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	if existing == nil {
		existing = map[string]any{}
	}

	if err := setNested(existing, key, value); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(existing); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	cur := m
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key %q", key)
		}
		if i == len(parts)-1 {
			cur[p] = value
			return nil
		}
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		childMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a table", key, strings.Join(parts[:i+1], "."))
		}
		cur = childMap
	}
	return nil
}

// Helpers for env + parsing ---------------------------------------------------

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"app.url":   kindString,
	"app.name":  kindString,
	"app.debug": kindBool,

	"admin.app_url":             kindString,
	"admin.path":                kindString,
	"admin.login_redirect_path": kindString,
	"admin.locales":             kindStringSlice,

	"features.two_factor":   kindBool,
	"features.user_avatars": kindBool,

	"auth.bcrypt_cost":    kindInt,
	"auth.session_cookie": kindString,

	"database.driver": kindString,
	"database.target": kindString,

	"media.endpoint":   kindString,
	"media.local_path": kindString,
	"media.url":        kindString,
	"files.endpoint":   kindString,
	"files.local_path": kindString,
	"files.url":        kindString,

	"imaging.source_path":     kindString,
	"imaging.cache_path":      kindString,
	"imaging.base_url":        kindString,
	"imaging.use_signed_urls": kindBool,
	"imaging.sign_key":        kindString,

	"log.level": kindString,
	"log.file":  kindString,
}

type envBinding struct {
	Env string
	Key string
}

var envBindings = []envBinding{
	{Env: "QUILL_APP_URL", Key: "app.url"},
	{Env: "QUILL_ADMIN_PATH", Key: "admin.path"},
	{Env: "QUILL_ADMIN_APP_URL", Key: "admin.app_url"},
	{Env: "QUILL_DB_CONNECTION", Key: "database.driver"},
	{Env: "QUILL_DB_DATABASE", Key: "database.target"},
	{Env: "QUILL_MEDIA_LIBRARY_ENDPOINT_TYPE", Key: "media.endpoint"},
	{Env: "QUILL_MEDIA_LIBRARY_LOCAL_PATH", Key: "media.local_path"},
	{Env: "QUILL_FILE_LIBRARY_ENDPOINT_TYPE", Key: "files.endpoint"},
	{Env: "QUILL_FILE_LIBRARY_LOCAL_PATH", Key: "files.local_path"},
	{Env: "QUILL_IMAGING_SOURCE_PATH", Key: "imaging.source_path"},
	{Env: "QUILL_IMAGING_CACHE_PATH", Key: "imaging.cache_path"},
	{Env: "QUILL_IMAGING_BASE_URL", Key: "imaging.base_url"},
	{Env: "QUILL_IMAGING_USE_SIGNED_URLS", Key: "imaging.use_signed_urls"},
	{Env: "QUILL_BCRYPT_COST", Key: "auth.bcrypt_cost"},
	{Env: "QUILL_LOG_LEVEL", Key: "log.level"},
	{Env: "QUILL_LOG_FILE", Key: "log.file"},
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", raw, err)
		}
		return n, nil
	case kindStringSlice:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}
