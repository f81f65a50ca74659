package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"memedex/internal/api"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and act on catalog items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsGenerateCommand(ctx))
	itemsCmd.AddCommand(newItemsCancelCommand(ctx))
	itemsCmd.AddCommand(newItemsRegenerateCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var sourceID int64
	var nameContains string
	var status string
	var missingDescription bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if sourceID > 0 {
				query.Set("source_id", strconv.FormatInt(sourceID, 10))
			}
			if nameContains != "" {
				query.Set("name_contains", nameContains)
			}
			if status != "" {
				query.Set("status", status)
			}
			if missingDescription {
				query.Set("missing_description", "true")
			}
			path := "/api/items"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var resp api.ItemListResponse
			if err := ctx.getJSON(path, &resp); err != nil {
				return err
			}

			tbl := newResultTable("ID", "Path", "Status", "Description").numericColumns("ID")
			for _, item := range resp.Items {
				tbl.addRow(
					strconv.FormatInt(item.ID, 10),
					item.RelPath,
					item.Status,
					truncate(item.Description, 60),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl.render())
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Restrict to one source id")
	cmd.Flags().StringVar(&nameContains, "name", "", "Substring match on the relative path")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status name")
	cmd.Flags().BoolVar(&missingDescription, "missing-description", false, "Only items without a description")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			var resp api.ItemResponse
			if err := ctx.getJSON(fmt.Sprintf("/api/items/%d", id), &resp); err != nil {
				return err
			}

			item := resp.Item
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %d\n", item.ID)
			fmt.Fprintf(out, "Source:      %d\n", item.SourceID)
			fmt.Fprintf(out, "Path:        %s\n", item.RelPath)
			fmt.Fprintf(out, "Title:       %s\n", item.Title)
			fmt.Fprintf(out, "Status:      %s\n", item.Status)
			if item.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", item.Description)
			}
			if item.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:       %s\n", item.ErrorMessage)
			}
			return nil
		},
	}
}

func newItemsGenerateCommand(ctx *commandContext) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Queue a caption job for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemAction(ctx, cmd, args[0], "generate", model)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model identifier (defaults to the configured model)")
	return cmd
}

func newItemsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an item's in-flight caption job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemAction(ctx, cmd, args[0], "cancel", "")
		},
	}
}

func newItemsRegenerateCommand(ctx *commandContext) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Discard an item's caption and queue a fresh job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemAction(ctx, cmd, args[0], "regenerate", model)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model identifier (defaults to the configured model)")
	return cmd
}

func runItemAction(ctx *commandContext, cmd *cobra.Command, rawID, action, model string) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q", rawID)
	}

	var payload any
	if action != "cancel" {
		payload = api.GenerateRequest{Model: model}
	}
	var resp api.ActionResponse
	if err := ctx.postJSON(fmt.Sprintf("/api/items/%d/%s", id, action), payload, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Applied {
		fmt.Fprintf(out, "Item %d: %s accepted\n", id, action)
	} else {
		fmt.Fprintf(out, "Item %d: %s had no effect (already in that state?)\n", id, action)
	}
	return nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
