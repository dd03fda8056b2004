package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fieldmaps/webmapctl/internal/config"
	"github.com/fieldmaps/webmapctl/internal/engine"
	"github.com/fieldmaps/webmapctl/internal/journal"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// FormsOptions holds flags for the forms command.
type FormsOptions struct {
	*RootOptions
	Item      string
	Field     string
	Value     string
	Group     string
	Label     string
	Editable  bool
	Config    string
	Overwrite bool
	DryRun    bool
}

// NewFormsCommand creates the forms command.
func NewFormsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FormsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "Apply editing-form defaults to a web map's layers",
		Long: `Apply a default-value expression and form element for a field to the
feature layers of a web map.

Global mode takes --item, --field, and --value. Every layer that has an
editing form and the field receives the derived expression plus a form
element placed in the target group. Layers without a form are skipped;
defaults are only injected into forms that already exist.

Batch mode takes --config, a YAML file whose per-layer form sections are
applied one web map at a time. Values are checked against each field's
declared type, so a numeric field rejects a non-numeric default.

Examples:
  webmapctl forms --item 1a2b3c --field project_number --value P-1001
  webmapctl forms --item 1a2b3c --field crew --value "Crew A" --group "Site Data" --editable
  webmapctl forms --config maps.yaml --overwrite-expressions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForms(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Item, "item", "", "web map item id")
	cmd.Flags().StringVar(&opts.Field, "field", "", "target field name")
	cmd.Flags().StringVar(&opts.Value, "value", "", "default value for the field")
	cmd.Flags().StringVar(&opts.Group, "group", "",
		`form group receiving the element (default "`+webmap.DefaultGroupLabel+`")`)
	cmd.Flags().StringVar(&opts.Label, "label", "", "element label (default derived from the field name)")
	cmd.Flags().BoolVar(&opts.Editable, "editable", false, "leave the field editable on the form")
	cmd.Flags().StringVar(&opts.Config, "config", "", "batch configuration file (per-layer mode)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite-expressions", false,
		"rewrite already registered expressions whose text differs")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "apply in memory but do not save")

	return cmd
}

func runForms(opts *FormsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Config != "" {
		return runFormsBatch(ctx, opts, cmd)
	}
	return runFormsGlobal(ctx, opts, cmd)
}

func runFormsGlobal(ctx context.Context, opts *FormsOptions, cmd *cobra.Command) error {
	if opts.Item == "" || opts.Field == "" || opts.Value == "" {
		return NewExitError(ExitCommandError, "--item, --field, and --value are required without --config")
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	eng := engine.New(client, client)

	updated, err := eng.ApplyGlobalFormDefault(ctx, engine.GlobalFormRequest{
		ItemID:     opts.Item,
		Field:      opts.Field,
		Value:      opts.Value,
		GroupLabel: opts.Group,
		Label:      opts.Label,
		Editable:   opts.Editable,
		Simulate:   opts.DryRun,
	})

	entry := journal.Entry{ItemID: opts.Item, Operation: opGlobalForm, DryRun: opts.DryRun}
	if err == nil {
		entry.Updated = len(updated)
		entry.Verified = !opts.DryRun
	}
	recordRun(ctx, opts.Journal, entry)

	if err != nil {
		return WrapExitError(ExitFailure, "apply form default", err)
	}
	return outputGlobalForms(cmd, opts, updated)
}

type globalFormReport struct {
	Item       string   `json:"item"`
	Field      string   `json:"field"`
	Expression string   `json:"expression"`
	Updated    []string `json:"updated"`
	DryRun     bool     `json:"dryRun,omitempty"`
}

func outputGlobalForms(cmd *cobra.Command, opts *FormsOptions, updated []string) error {
	exprName := engine.DeriveExpressionName(opts.Field)
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Command: "forms",
			Data: globalFormReport{
				Item:       opts.Item,
				Field:      opts.Field,
				Expression: exprName,
				Updated:    updated,
				DryRun:     opts.DryRun,
			},
		})
	}

	w := cmd.OutOrStdout()
	verb := "Updated"
	if opts.DryRun {
		verb = "Would update"
	}
	fmt.Fprintf(w, "%s %d form(s) with expression %s\n", verb, len(updated), exprName)
	for _, address := range updated {
		fmt.Fprintf(w, "  %s\n", address)
	}
	if len(updated) == 0 {
		fmt.Fprintln(w, "No layers had both an editing form and the target field.")
	}
	return nil
}

func runFormsBatch(ctx context.Context, opts *FormsOptions, cmd *cobra.Command) error {
	if opts.Item != "" || opts.Field != "" || opts.Value != "" {
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

	reports := make([]formMapReport, 0, len(batch.Webmaps))
	var cliErrs []CLIError
	for _, wm := range batch.Webmaps {
		if len(wm.Forms) == 0 {
			slog.Debug("no form section for web map, skipping", "item", wm.ID)
			continue
		}

		res, err := eng.ApplyPerLayerFormDefaults(ctx, engine.PerLayerFormRequest{
			ItemID:               wm.ID,
			Layers:               wm.Forms,
			OverwriteExpressions: opts.Overwrite,
			Simulate:             opts.DryRun,
		})

		report := formMapReport{Item: wm.ID}
		entry := journal.Entry{ItemID: wm.ID, Operation: opLayerForms, DryRun: opts.DryRun}
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

	if err := outputFormsBatch(cmd, opts, reports, cliErrs); err != nil {
		return err
	}
	if len(cliErrs) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d web maps had failures", len(cliErrs), len(reports)))
	}
	return nil
}

type formMapReport struct {
	Item   string             `json:"item"`
	Result *engine.FormResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func outputFormsBatch(cmd *cobra.Command, opts *FormsOptions, reports []formMapReport, cliErrs []CLIError) error {
	if opts.Format == "json" {
		status := "ok"
		if len(cliErrs) > 0 {
			status = "error"
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  status,
			Command: "forms",
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
		printFilterResult(w, &report.Result.FilterResult)
		for _, name := range report.Result.ExpressionsCreated {
			fmt.Fprintf(w, "    created expression %s\n", name)
		}
	}
	return nil
}
