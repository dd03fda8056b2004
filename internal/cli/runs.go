package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldmaps/webmapctl/internal/journal"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded engine runs",
		Long: `List the runs recorded in the local journal, newest first. Each
mutating command appends one row per web map it touched, including
simulated runs.

Examples:
  webmapctl runs
  webmapctl runs --limit 5 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Journal == "" {
		return NewExitError(ExitCommandError, "a journal path is required (--journal or "+EnvJournal+")")
	}

	// Listing runs should not create an empty journal database.
	if _, err := os.Stat(opts.Journal); os.IsNotExist(err) {
		return outputRuns(cmd, opts, []journal.Entry{})
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer j.Close()

	entries, err := j.Recent(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "read journal", err)
	}
	return outputRuns(cmd, opts, entries)
}

func outputRuns(cmd *cobra.Command, opts *RunsOptions, entries []journal.Entry) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Command: "runs",
			Data:    entries,
		})
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, e := range entries {
		markers := make([]string, 0, 2)
		if e.DryRun {
			markers = append(markers, "dry run")
		}
		if e.Verified {
			markers = append(markers, "verified")
		}
		suffix := ""
		if len(markers) > 0 {
			suffix = " [" + strings.Join(markers, ", ") + "]"
		}
		fmt.Fprintf(w, "%s  %-13s %s  updated %d, skipped %d, errors %d%s\n",
			e.StartedAt.UTC().Format(time.RFC3339),
			e.Operation,
			e.ItemID,
			e.Updated, e.Skipped, e.Errors,
			suffix)
	}
	return nil
}
