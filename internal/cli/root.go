// Package cli implements the webmapctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldmaps/webmapctl/internal/portal"
)

// Environment variables consulted when the corresponding flag is unset.
// The access token is only ever read from the environment; there is no
// token flag and no default credential.
const (
	EnvPortal  = "WEBMAPCTL_PORTAL"
	EnvToken   = "WEBMAPCTL_TOKEN"
	EnvJournal = "WEBMAPCTL_JOURNAL"
)

// Operation names recorded in the run journal.
const (
	opGlobalFilter = "global-filter"
	opLayerFilters = "layer-filters"
	opGlobalForm   = "global-form"
	opLayerForms   = "layer-forms"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Portal   string
	TokenEnv string
	Journal  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for webmapctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "webmapctl",
		Short: "Mutate web map definitions on a content service",
		Long: `webmapctl fetches a web map definition from a content service, applies
filter expressions and editing-form defaults to its feature layers, and
saves the document back.

The access token is never taken on the command line: export it in the
environment variable named by --token-env (default ` + EnvToken + `).
Requests are anonymous when that variable is empty.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Portal, "portal", os.Getenv(EnvPortal),
		"content service sharing API base URL")
	cmd.PersistentFlags().StringVar(&opts.TokenEnv, "token-env", EnvToken,
		"environment variable holding the access token")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", journalDefault(),
		"path to the run journal database")

	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewFormsCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

func journalDefault() string {
	if path := os.Getenv(EnvJournal); path != "" {
		return path
	}
	return "webmapctl.db"
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// configureLogging routes slog to stderr at a level matching the verbose
// flag, keeping stdout clean for command output.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// newClient builds the portal client from the root options. The token, if
// any, comes from the environment variable named by TokenEnv.
func (o *RootOptions) newClient() (*portal.Client, error) {
	if o.Portal == "" {
		return nil, NewExitError(ExitCommandError,
			"a portal URL is required (--portal or "+EnvPortal+")")
	}
	token := ""
	if o.TokenEnv != "" {
		token = os.Getenv(o.TokenEnv)
	}
	return portal.New(o.Portal, portal.WithTokenProvider(portal.StaticToken(token))), nil
}
