package console

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/quill/internal/auth"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/output"
	"github.com/Dicklesworthstone/quill/internal/preset"
)

// MigrationsDir holds app-specific SQL migrations, relative to the app root.
const MigrationsDir = "database/migrations"

func newInstallCmd(d Deps, f *flags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "install [preset]",
		Short: "Install Quill and create the super admin",
		Long: `Install copies an optional preset into the app root, migrates the
database and prompts for the super admin's email and password.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := f.writer(cmd)
			if len(args) == 1 {
				written, err := preset.Install(args[0], d.Root)
				if err != nil {
					return err
				}
				d.Logger.Debug("preset installed", "preset", args[0], "files", len(written))
				if d.Reload != nil {
					if err := d.Reload(); err != nil {
						return fmt.Errorf("reloading after preset %s: %w", args[0], err)
					}
				}
			}

			if err := d.DB.Migrate(filepath.Join(d.Root, MigrationsDir)); err != nil {
				return err
			}

			u, err := createSuperAdmin(cmd, d, name)
			if err != nil {
				return err
			}
			d.Logger.Info("super admin created", "user_id", u.ID, "email", u.Email)
			if f.format() != output.FormatText {
				return w.Write(u)
			}
			w.Success(fmt.Sprintf("Quill installed. Log in as %s.", u.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "super admin display name (default: email local part)")
	return cmd
}

func createSuperAdmin(cmd *cobra.Command, d Deps, name string) (*db.User, error) {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	email, err := p.ask(PromptEmail, false)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}

	password, err := p.ask(PromptPassword, true)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	confirm, err := p.ask(PromptConfirm, true)
	if err != nil {
		return nil, err
	}
	if confirm != password {
		return nil, errors.New("the passwords do not match")
	}

	if _, err := d.DB.GetUserByEmail(email); err == nil {
		return nil, db.ErrUserExists
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, d.Config.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	u := &db.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         db.RoleSuperAdmin,
	}
	if locales := d.Config.Admin.Locales; len(locales) > 0 {
		u.Locale = locales[0]
	}
	if err := d.DB.CreateUser(u); err != nil {
		return nil, err
	}
	return u, nil
}
