package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memedex/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.getJSON("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %v\n", status.Running)
			fmt.Fprintf(out, "Catalog DB:     %s\n", status.CatalogDBPath)
			if status.WorkerReachable {
				fmt.Fprintf(out, "Worker queue:   %d pending\n", status.WorkerQueueDepth)
			} else {
				fmt.Fprintln(out, "Worker queue:   unreachable")
			}

			tbl := newResultTable("Items", "Count").numericColumns("Count")
			tbl.addRow("total", fmt.Sprintf("%d", status.Stats.Total))
			tbl.addRow("not started", fmt.Sprintf("%d", status.Stats.NotStarted))
			tbl.addRow("in flight", fmt.Sprintf("%d", status.Stats.InFlight))
			tbl.addRow("done", fmt.Sprintf("%d", status.Stats.Done))
			tbl.addRow("failed", fmt.Sprintf("%d", status.Stats.Failed))
			fmt.Fprintln(out, tbl.render())
			return nil
		},
	}
}
