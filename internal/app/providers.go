package app

import (
	"fmt"

	"github.com/Dicklesworthstone/quill/internal/console"
	"github.com/Dicklesworthstone/quill/internal/db"
)

// Provider registers one part of the application.
type Provider interface {
	Name() string
	Register(a *App) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(a *App) error
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Register(a *App) error { return p.Fn(a) }

// DefaultProviders returns the database, validation and routes providers.
func DefaultProviders() []Provider {
	return []Provider{
		ProviderFunc{ProviderName: "database", Fn: registerDatabase},
		ProviderFunc{ProviderName: "validation", Fn: registerValidation},
		ProviderFunc{ProviderName: "routes", Fn: registerRoutes},
	}
}

func registerDatabase(a *App) error {
	if a.Config.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", a.Config.Database.Driver)
	}
	database, err := db.OpenAndMigrate(a.DatabaseTarget(), a.Path(console.MigrationsDir))
	if err != nil {
		return err
	}
	a.DB = database
	return nil
}

func registerValidation(a *App) error {
	return a.loadModules()
}

func registerRoutes(a *App) error {
	if a.DB == nil {
		return fmt.Errorf("database provider must run first")
	}
	return a.buildServer()
}
