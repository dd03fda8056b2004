package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/spf13/cobra"

	"github.com/fieldmaps/webmapctl/internal/engine"
	"github.com/fieldmaps/webmapctl/internal/fields"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Query string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <item-id>",
		Short: "Show the layers, filters, and forms of a web map",
		Long: `Fetch a web map and report its operational layers in display order:
group placement, layer address, current definition filter, whether an
editing form is configured, and the fields each layer's service declares.

With --query, print the raw parts of the map document matched by a
JSONPath expression instead of the layer inventory.

Examples:
  webmapctl inspect 1a2b3c
  webmapctl inspect 1a2b3c --query '$.operationalLayers[*].title'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Query, "query", "", "JSONPath expression to evaluate against the map document")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command, itemID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}

	if opts.Query != "" {
		return runInspectQuery(ctx, opts, cmd, client, itemID)
	}

	eng := engine.New(client, client)
	inv, err := eng.Inspect(ctx, itemID)
	if err != nil {
		return WrapExitError(ExitFailure, "inspect web map", err)
	}
	return outputInventory(cmd, opts, inv)
}

func runInspectQuery(ctx context.Context, opts *InspectOptions, cmd *cobra.Command, data engine.ContentStore, itemID string) error {
	expr, err := jp.ParseString(opts.Query)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid jsonpath", err)
	}

	raw, err := data.ItemData(ctx, itemID)
	if err != nil {
		return WrapExitError(ExitFailure, "fetch map document", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return WrapExitError(ExitFailure, "decode map document", err)
	}

	matches := expr.Get(doc)
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Command: "inspect",
			Data:    matches,
		})
	}

	w := cmd.OutOrStdout()
	for _, match := range matches {
		encoded, err := json.Marshal(match)
		if err != nil {
			return WrapExitError(ExitFailure, "encode match", err)
		}
		fmt.Fprintln(w, string(encoded))
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches.")
	}
	return nil
}

func outputInventory(cmd *cobra.Command, opts *InspectOptions, inv *engine.Inventory) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Command: "inspect",
			Data:    inv,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Web map: %s (%s), owner %s\n", inv.Item.Title, inv.Item.ID, inv.Item.Owner)
	if inv.Item.Modified > 0 {
		fmt.Fprintf(w, "Modified: %s\n", time.UnixMilli(inv.Item.Modified).UTC().Format(time.RFC3339))
	}
	if len(inv.Layers) == 0 {
		fmt.Fprintln(w, "No feature layers.")
		return nil
	}

	for _, layer := range inv.Layers {
		title := layer.Title
		if len(layer.GroupPath) > 0 {
			title = strings.Join(layer.GroupPath, "/") + "/" + title
		}
		fmt.Fprintf(w, "\n%s\n", title)
		if layer.Address != "" {
			fmt.Fprintf(w, "  address: %s\n", layer.Address)
		}
		if layer.Filter != "" {
			fmt.Fprintf(w, "  filter: %s\n", layer.Filter)
		}
		if layer.HasForm {
			fmt.Fprintln(w, "  form: configured")
		}
		for _, field := range layer.Fields {
			fmt.Fprintf(w, "  %s (%s)\n", field.Name, fields.DisplayName(field.Type))
		}
	}
	return nil
}
