package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/output"
	"github.com/Dicklesworthstone/quill/internal/preset"
	"github.com/Dicklesworthstone/quill/internal/watch"
)

func newMigrateCmd(d Deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.DB.Migrate(filepath.Join(d.Root, MigrationsDir)); err != nil {
				return err
			}
			applied, err := d.DB.AppliedMigrations()
			if err != nil {
				return err
			}
			w := f.writer(cmd)
			if f.format() != output.FormatText {
				return w.Write(map[string]any{"applied": applied})
			}
			w.Success(fmt.Sprintf("Database is up to date (%d migrations applied).", len(applied)))
			return nil
		},
	}
}

func newSeedCmd(d Deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "db:seed",
		Short: "Run the database seeders",
		RunE: func(cmd *cobra.Command, args []string) error {
			seeders := d.Seeders
			if len(seeders) == 0 {
				seeders = []db.Seeder{db.DefaultSeeder}
			}
			if err := d.DB.Seed(cmd.Context(), seeders...); err != nil {
				return err
			}
			f.writer(cmd).Success(fmt.Sprintf("Ran %d seeders.", len(seeders)))
			return nil
		},
	}
}

func newUsersCmd(d Deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := d.DB.ListUsers()
			if err != nil {
				return err
			}
			if users == nil {
				users = []*db.User{}
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Name, u.Email, string(u.Role), u.Locale})
			}
			return f.writer(cmd).Table([]string{"ID", "NAME", "EMAIL", "ROLE", "LOCALE"}, rows, users)
		},
	}
}

func newPresetListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "preset:list",
		Short: "List bundled presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests := []preset.Manifest{}
			var rows [][]string
			for _, name := range preset.Available() {
				m, err := preset.Describe(name)
				if err != nil {
					return err
				}
				manifests = append(manifests, m)
				rows = append(rows, []string{m.Name, m.Description})
			}
			return f.writer(cmd).Table([]string{"NAME", "DESCRIPTION"}, rows, manifests)
		},
	}
}

func newServeCmd(d Deps) *cobra.Command {
	var (
		addr       string
		watchFiles bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin console and site over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.Handler == nil {
				return errors.New("no HTTP handler configured")
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			srv := &http.Server{
				Handler:           d.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if watchFiles {
				w, err := newReloader(d)
				if err != nil {
					_ = ln.Close()
					return err
				}
				g.Go(func() error {
					w.Run(gctx, func(evs []watch.Event) error {
						for _, ev := range evs {
							d.Logger.Debug("changed", "path", w.Rel(ev), "op", ev.Op.String())
						}
						if err := d.Reload(); err != nil {
							return err
						}
						d.Logger.Info("reloaded", "changes", len(evs))
						return nil
					})
					return w.Stop()
				})
			}
			g.Go(func() error {
				d.Logger.Info("serving", "addr", ln.Addr().String(), "admin", "/"+d.Config.Admin.Path)
				fmt.Fprintf(cmd.OutOrStdout(), "Quill listening on http://%s\n", ln.Addr())
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&watchFiles, "watch", false, "reload modules, routes and views when they change on disk")
	return cmd
}

func newReloader(d Deps) (*watch.Watcher, error) {
	if d.Reload == nil {
		return nil, errors.New("reload is not available")
	}
	return watch.New(d.Root, watch.WithLogger(d.Logger))
}
