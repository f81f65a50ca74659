package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"memedex/internal/api"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage watched source directories",
	}

	sourcesCmd.AddCommand(newSourcesListCommand(ctx))
	sourcesCmd.AddCommand(newSourcesAddCommand(ctx))
	sourcesCmd.AddCommand(newSourcesScanCommand(ctx))
	sourcesCmd.AddCommand(newSourcesResetCommand(ctx))
	sourcesCmd.AddCommand(newSourcesAutoScanCommand(ctx))

	return sourcesCmd
}

func newSourcesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.SourceListResponse
			if err := ctx.getJSON("/api/sources", &resp); err != nil {
				return err
			}

			tbl := newResultTable("ID", "Path", "Frequency", "Scan status", "Failures").
				numericColumns("ID", "Frequency", "Failures")
			for _, source := range resp.Sources {
				frequency := "manual"
				if source.AutoScanFrequency != nil {
					frequency = fmt.Sprintf("%ds", *source.AutoScanFrequency)
				}
				tbl.addRow(
					strconv.FormatInt(source.ID, 10),
					source.Path,
					frequency,
					source.ScanStatus,
					strconv.Itoa(source.ConsecutiveFailures),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl.render())
			return nil
		},
	}
}

func newSourcesAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var frequency int

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a directory for scanning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := api.AddSourceRequest{Path: args[0], Title: title}
			if frequency > 0 {
				payload.AutoScanFrequency = &frequency
			}
			var resp api.SourceResponse
			if err := ctx.postJSON("/api/sources", payload, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %d registered: %s\n", resp.Source.ID, resp.Source.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Display title for the source")
	cmd.Flags().IntVar(&frequency, "every", 0, "Auto-scan frequency in seconds (0 disables auto-scan)")
	return cmd
}

func newSourcesScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <id>",
		Short: "Scan a source now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			if err := ctx.postJSON(fmt.Sprintf("/api/sources/%d/scan", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %d scanned\n", id)
			return nil
		},
	}
}

func newSourcesResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-failures <id>",
		Short: "Clear a source's failure counter so automatic scans resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			if err := ctx.postJSON(fmt.Sprintf("/api/sources/%d/reset-failures", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %d failure counter reset\n", id)
			return nil
		},
	}
}

func newSourcesAutoScanCommand(ctx *commandContext) *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "auto-scan <id>",
		Short: "Enable or disable automatic scanning for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			payload := map[string]bool{"enabled": enable}
			if err := ctx.postJSON(fmt.Sprintf("/api/sources/%d/auto-scan", id), payload, nil); err != nil {
				return err
			}
			state := "disabled"
			if enable {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %d auto-scan %s\n", id, state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", true, "Enable (true) or disable (false) auto-scan")
	return cmd
}
