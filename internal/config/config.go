// Package config implements hierarchical configuration for Quill.
// Precedence: defaults < user (~/.quill/config.toml) < project (config/quill.toml) < env (QUILL_*) < overrides.
package config

// DatabaseInMemory is the database target that keeps everything in memory.
const DatabaseInMemory = ":memory:"

// Config is the top-level configuration structure.
type Config struct {
	App      AppConfig      `toml:"app" mapstructure:"app"`
	Admin    AdminConfig    `toml:"admin" mapstructure:"admin"`
	Features FeaturesConfig `toml:"features" mapstructure:"features"`
	Auth     AuthConfig     `toml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	Media    LibraryConfig  `toml:"media" mapstructure:"media"`
	Files    LibraryConfig  `toml:"files" mapstructure:"files"`
	Imaging  ImagingConfig  `toml:"imaging" mapstructure:"imaging"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
}

// AppConfig describes the host application.
type AppConfig struct {
	URL   string `toml:"url" mapstructure:"url"`
	Name  string `toml:"name" mapstructure:"name"`
	Debug bool   `toml:"debug" mapstructure:"debug"`
}

// AdminConfig controls where the admin console lives.
type AdminConfig struct {
	AppURL            string   `toml:"app_url" mapstructure:"app_url"`
	Path              string   `toml:"path" mapstructure:"path"`
	LoginRedirectPath string   `toml:"login_redirect_path" mapstructure:"login_redirect_path"`
	Locales           []string `toml:"locales" mapstructure:"locales"`
}

// FeaturesConfig toggles optional admin features.
type FeaturesConfig struct {
	TwoFactor   bool `toml:"two_factor" mapstructure:"two_factor"`
	UserAvatars bool `toml:"user_avatars" mapstructure:"user_avatars"`
}

// AuthConfig holds password and session settings.
type AuthConfig struct {
	BcryptCost    int    `toml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	SessionCookie string `toml:"session_cookie" mapstructure:"session_cookie"`
}

// DatabaseConfig selects the database. Target is a file path relative to the
// app root, an absolute path, or DatabaseInMemory.
type DatabaseConfig struct {
	Driver string `toml:"driver" mapstructure:"driver"`
	Target string `toml:"target" mapstructure:"target"`
}

// LibraryConfig configures the media or file library.
type LibraryConfig struct {
	Endpoint  string `toml:"endpoint" mapstructure:"endpoint"` // local
	LocalPath string `toml:"local_path" mapstructure:"local_path"`
	URL       string `toml:"url" mapstructure:"url"`
}

// ImagingConfig configures image serving.
type ImagingConfig struct {
	SourcePath    string `toml:"source_path" mapstructure:"source_path"`
	CachePath     string `toml:"cache_path" mapstructure:"cache_path"`
	BaseURL       string `toml:"base_url" mapstructure:"base_url"`
	UseSignedURLs bool   `toml:"use_signed_urls" mapstructure:"use_signed_urls"`
	SignKey       string `toml:"sign_key" mapstructure:"sign_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" mapstructure:"level"`
	// File, when set, receives log output instead of stderr. Relative to the app root.
	File string `toml:"file" mapstructure:"file"`
}

// InMemory reports whether the database target is the in-memory marker.
func (d DatabaseConfig) InMemory() bool {
	return d.Target == DatabaseInMemory
}
