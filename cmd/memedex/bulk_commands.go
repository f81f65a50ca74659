package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"memedex/internal/api"
)

func newBulkCommand(ctx *commandContext) *cobra.Command {
	bulkCmd := &cobra.Command{
		Use:   "bulk",
		Short: "Run captioning over many items at once",
	}

	bulkCmd.AddCommand(newBulkStartCommand(ctx))
	bulkCmd.AddCommand(newBulkStatusCommand(ctx))
	bulkCmd.AddCommand(newBulkCancelCommand(ctx))

	return bulkCmd
}

func newBulkStartCommand(ctx *commandContext) *cobra.Command {
	var sourceID int64
	var nameContains string
	var status string
	var missingDescription bool
	var model string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Snapshot matching items and queue caption jobs for them",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := api.BulkStartRequest{
				SourceID:           sourceID,
				NameContains:       nameContains,
				Status:             status,
				MissingDescription: missingDescription,
				Model:              model,
			}
			var resp api.BulkStartResponse
			if err := ctx.postSessionJSON("/bulk", payload, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.TotalCount == 0 {
				fmt.Fprintln(out, "No items matched the filter; nothing queued")
				return nil
			}
			fmt.Fprintf(out, "Operation %s started over %d items\n", resp.OperationID, resp.TotalCount)
			fmt.Fprintf(out, "Track progress with: memedex bulk status %s\n", resp.OperationID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Restrict to one source id")
	cmd.Flags().StringVar(&nameContains, "name", "", "Substring match on the relative path")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status name")
	cmd.Flags().BoolVar(&missingDescription, "missing-description", false, "Only items without a description")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier (defaults to the configured model)")
	return cmd
}

func newBulkStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <operation-id>",
		Short: "Show live progress for a bulk operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.BulkProgressResponse
			if err := ctx.getSessionJSON("/bulk/"+args[0], &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Operation %s: %d items", resp.OperationID, resp.TotalCount)
			if resp.IsComplete {
				fmt.Fprint(out, " (complete)")
			}
			fmt.Fprintln(out)

			names := make([]string, 0, len(resp.Counts))
			for name := range resp.Counts {
				names = append(names, name)
			}
			sort.Strings(names)
			tbl := newResultTable("Status", "Count").numericColumns("Count")
			for _, name := range names {
				tbl.addRow(name, fmt.Sprintf("%d", resp.Counts[name]))
			}
			fmt.Fprintln(out, tbl.render())
			return nil
		},
	}
}

func newBulkCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <operation-id>",
		Short: "Cancel a bulk operation's remaining items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.BulkCancelResponse
			if err := ctx.postSessionJSON("/bulk/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d items\n", resp.Cancelled)
			return nil
		},
	}
}
