package config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		App: AppConfig{
			URL:  "http://localhost:8080",
			Name: "Quill",
		},
		Admin: AdminConfig{
			AppURL:            "http://localhost:8080",
			Path:              "admin",
			LoginRedirectPath: "/admin",
			Locales:           []string{"en"},
		},
		Features: FeaturesConfig{
			TwoFactor:   false,
			UserAvatars: true,
		},
		Auth: AuthConfig{
			BcryptCost:    10,
			SessionCookie: "quill_session",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Target: "database/quill.db",
		},
		Media: LibraryConfig{
			Endpoint:  "local",
			LocalPath: "storage/uploads",
			URL:       "/storage/uploads",
		},
		Files: LibraryConfig{
			Endpoint:  "local",
			LocalPath: "storage/files",
			URL:       "/storage/files",
		},
		Imaging: ImagingConfig{
			SourcePath:    "storage/uploads",
			CachePath:     "storage/images/cache",
			BaseURL:       "/img",
			UseSignedURLs: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
