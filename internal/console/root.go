// Package console implements Quill's Cobra command line: install, migrate,
// seeding, user listing, presets and the HTTP server.
package console

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"github.com/Dicklesworthstone/quill/internal/output"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Deps are the application services commands run against.
type Deps struct {
	Config  config.Config
	Root    string
	DB      *db.DB
	Modules *modules.Registry
	Logger  *log.Logger
	Seeders []db.Seeder

	// Handler returns the current HTTP handler for serve.
	Handler func() http.Handler
	// Reload is called after a preset has been copied into Root.
	Reload func() error
}

type flags struct {
	output  string
	json    bool
	verbose bool
}

func (f *flags) format() output.Format {
	if f.json {
		return output.FormatJSON
	}
	return output.Format(f.output)
}

func (f *flags) writer(cmd *cobra.Command) *output.Writer {
	return output.New(f.format(), output.WithOutput(cmd.OutOrStdout()), output.WithErrorOutput(cmd.ErrOrStderr()))
}

// NewRootCmd builds a fresh command tree bound to d.
func NewRootCmd(d Deps) *cobra.Command {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	f := &flags{}

	root := &cobra.Command{
		Use:   "quill",
		Short: "Quill - content management for your application",
		Long: `Quill adds an admin console for content modules, users and media to an
application root.

Run 'quill install' once to create the database schema and the first
super admin. Presets add starter modules, views and routes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := output.ParseFormat(string(f.format())); err != nil {
				return err
			}
			if f.verbose {
				d.Logger.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			showQuickReference(cmd.OutOrStdout(), d.Config.App.Name)
		},
	}

	root.PersistentFlags().StringVarP(&f.output, "output", "o", "text", "output format: text, json, yaml")
	root.PersistentFlags().BoolVarP(&f.json, "json", "j", false, "shorthand for --output=json")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newInstallCmd(d, f),
		newMigrateCmd(d, f),
		newSeedCmd(d, f),
		newUsersCmd(d, f),
		newPresetListCmd(f),
		newServeCmd(d),
		newVersionCmd(d, f),
	)
	return root
}

// Execute runs args against a fresh command tree and returns the exit code.
// Errors are written to errOut in the selected output format.
func Execute(ctx context.Context, d Deps, args []string, in io.Reader, out, errOut io.Writer) int {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	root := NewRootCmd(d)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}
	format := output.FormatText
	if cmd != nil {
		if j, _ := cmd.Flags().GetBool("json"); j {
			format = output.FormatJSON
		} else if o, _ := cmd.Flags().GetString("output"); o != "" {
			if f, perr := output.ParseFormat(o); perr == nil {
				format = f
			}
		}
	}
	output.New(format, output.WithOutput(errOut), output.WithErrorOutput(errOut)).Error(err)
	d.Logger.Debug("command failed", "args", args, "error", err)
	return ExitError
}

func newVersionCmd(d Deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"version":    version,
				"commit":     commit,
				"build_date": date,
				"root":       d.Root,
				"database":   d.Config.Database.Target,
			}
			if f.format() != output.FormatText {
				return f.writer(cmd).Write(payload)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quill %s\n", version)
			fmt.Fprintf(out, "  commit:   %s\n", commit)
			fmt.Fprintf(out, "  built:    %s\n", date)
			fmt.Fprintf(out, "  root:     %s\n", d.Root)
			fmt.Fprintf(out, "  database: %s\n", d.Config.Database.Target)
			return nil
		},
	}
}
