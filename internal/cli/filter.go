package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldmaps/webmapctl/internal/config"
	"github.com/fieldmaps/webmapctl/internal/engine"
	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/journal"
)

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Item   string
	Field  string
	Where  string
	Op     string
	Value  string
	Config string
	DryRun bool
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Apply filter expressions to a web map's layers",
		Long: `Apply filter expressions to the feature layers of a web map.

Global mode takes --item and --field plus either --where (an expression
applied verbatim) or --op with --value (the expression is built from the
field's declared type). Every layer whose schema has the field receives
the expression, and the save is verified by re-reading the document.

Batch mode takes --config, a YAML file whose per-layer filter sections
are applied one web map at a time. Layers absent from a section are left
untouched, and a failing web map does not stop the rest of the batch.

Examples:
  webmapctl filter --item 1a2b3c --field STATUS --where "STATUS = 'active'"
  webmapctl filter --item 1a2b3c --field STATUS --op = --value active
  webmapctl filter --config maps.yaml --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Item, "item", "", "web map item id")
	cmd.Flags().StringVar(&opts.Field, "field", "", "target field name")
	cmd.Flags().StringVar(&opts.Where, "where", "", "filter expression applied verbatim")
	cmd.Flags().StringVar(&opts.Op, "op", "",
		"operator used to build the expression ("+strings.Join(fields.Operators(), ", ")+")")
	cmd.Flags().StringVar(&opts.Value, "value", "", "raw value used to build the expression")
	cmd.Flags().StringVar(&opts.Config, "config", "", "batch configuration file (per-layer mode)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "apply in memory but do not save")

	return cmd
}

func runFilter(opts *FilterOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Config != "" {
		return runFilterBatch(ctx, opts, cmd)
	}
	return runFilterGlobal(ctx, opts, cmd)
}

func runFilterGlobal(ctx context.Context, opts *FilterOptions, cmd *cobra.Command) error {
	if opts.Item == "" || opts.Field == "" {
		return NewExitError(ExitCommandError, "--item and --field are required without --config")
	}
	if opts.Where == "" && opts.Op == "" {
		return NewExitError(ExitCommandError, "provide --where, or --op with --value")
	}
	if opts.Where != "" && opts.Op != "" {
		return NewExitError(ExitCommandError, "--where and --op are mutually exclusive")
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	eng := engine.New(client, client)

	where := opts.Where
	if where == "" {
		where, err = buildWhere(ctx, eng, opts)
		if err != nil {
			return WrapExitError(ExitCommandError, "build filter expression", err)
		}
	}

	updated, err := eng.ApplyGlobalFilter(ctx, engine.GlobalFilterRequest{
		ItemID:   opts.Item,
		Field:    opts.Field,
		Where:    where,
		Simulate: opts.DryRun,
	})

	entry := journal.Entry{ItemID: opts.Item, Operation: opGlobalFilter, DryRun: opts.DryRun}
	if err == nil {
		entry.Updated = len(updated)
		entry.Verified = !opts.DryRun && len(updated) > 0
	}
	recordRun(ctx, opts.Journal, entry)

	if err != nil {
		return WrapExitError(ExitFailure, "apply filter", err)
	}
	return outputGlobalFilter(cmd, opts, where, updated)
}

// buildWhere composes the expression from the field's declared type, looked
// up from the web map's own layers.
func buildWhere(ctx context.Context, eng *engine.Engine, opts *FilterOptions) (string, error) {
	inv, err := eng.Inspect(ctx, opts.Item)
	if err != nil {
		return "", err
	}

	declaredType := ""
	for _, layer := range inv.Layers {
		for _, f := range layer.Fields {
			if f.Name == opts.Field {
				declaredType = f.Type
				break
			}
		}
		if declaredType != "" {
			break
		}
	}
	if declaredType == "" {
		slog.Warn("field not found in any layer schema, treating value as text",
			"field", opts.Field)
	}

	return fields.NewFormatter(slog.Default()).Where(opts.Field, opts.Op, opts.Value, declaredType)
}

type globalFilterReport struct {
	Item    string   `json:"item"`
	Where   string   `json:"where"`
	Updated []string `json:"updated"`
	DryRun  bool     `json:"dryRun,omitempty"`
}

func outputGlobalFilter(cmd *cobra.Command, opts *FilterOptions, where string, updated []string) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Command: "filter",
			Data:    globalFilterReport{Item: opts.Item, Where: where, Updated: updated, DryRun: opts.DryRun},
		})
	}

	w := cmd.OutOrStdout()
	if len(updated) == 0 {
		fmt.Fprintln(w, "No layers matched the target field; nothing to save.")
		return nil
	}
	verb := "Updated"
	if opts.DryRun {
		verb = "Would update"
	}
	fmt.Fprintf(w, "%s %d layer(s) with filter: %s\n", verb, len(updated), where)
	for _, address := range updated {
		fmt.Fprintf(w, "  %s\n", address)
	}
	return nil
}

func runFilterBatch(ctx context.Context, opts *FilterOptions, cmd *cobra.Command) error {
	if opts.Item != "" || opts.Field != "" || opts.Where != "" || opts.Op != "" {
		return NewExitError(ExitCommandError, "--config cannot be combined with single-map flags")
	}

	batch, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	eng := engine.New(client, client)

	reports := make([]filterMapReport, 0, len(batch.Webmaps))
	var cliErrs []CLIError
	for _, wm := range batch.Webmaps {
		if len(wm.Filters) == 0 {
			slog.Debug("no filter section for web map, skipping", "item", wm.ID)
			continue
		}

		res, err := eng.ApplyPerLayerFilters(ctx, engine.PerLayerFilterRequest{
			ItemID:   wm.ID,
			Layers:   wm.Filters,
			Simulate: opts.DryRun,
		})

		report := filterMapReport{Item: wm.ID}
		entry := journal.Entry{ItemID: wm.ID, Operation: opLayerFilters, DryRun: opts.DryRun}
		switch {
		case err != nil:
			report.Error = err.Error()
			cliErrs = append(cliErrs, CLIError{Code: ErrCodeOperation, Message: err.Error(), Item: wm.ID})
		default:
			report.Result = res
			entry.Updated = len(res.Updated)
			entry.Skipped = len(res.Skipped)
			entry.Errors = len(res.Errors)
			_, saveFailed := res.Errors[engine.SaveErrorKey]
			entry.Verified = !opts.DryRun && !saveFailed
			if len(res.Errors) > 0 {
				cliErrs = append(cliErrs, CLIError{
					Code:    ErrCodePartial,
					Message: fmt.Sprintf("%d layer(s) failed", len(res.Errors)),
					Item:    wm.ID,
				})
			}
		}
		recordRun(ctx, opts.Journal, entry)
		reports = append(reports, report)
	}

	if err := outputFilterBatch(cmd, opts, reports, cliErrs); err != nil {
		return err
	}
	if len(cliErrs) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d web maps had failures", len(cliErrs), len(reports)))
	}
	return nil
}

type filterMapReport struct {
	Item   string               `json:"item"`
	Result *engine.FilterResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func outputFilterBatch(cmd *cobra.Command, opts *FilterOptions, reports []filterMapReport, cliErrs []CLIError) error {
	if opts.Format == "json" {
		status := "ok"
		if len(cliErrs) > 0 {
			status = "error"
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  status,
			Command: "filter",
			Data:    reports,
			Errors:  cliErrs,
		})
	}

	w := cmd.OutOrStdout()
	for _, report := range reports {
		if report.Error != "" {
			fmt.Fprintf(w, "Web map %s: failed: %s\n", report.Item, report.Error)
			continue
		}
		fmt.Fprintf(w, "Web map %s:%s\n", report.Item, dryRunSuffix(opts.DryRun))
		printFilterResult(w, report.Result)
	}
	return nil
}
