package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tabshot/internal/ipc"
)

func newThumbnailCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newListCommand(ctx),
		newShowCommand(ctx),
		newDeleteCommand(ctx),
		newImageCommand(ctx),
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List thumbnail records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Items)
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No thumbnails recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Captured", "URL"},
					buildThumbnailRows(resp.Items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id|url>",
		Short: "Show a single thumbnail record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Item)
				}
				renderThumbnailDetail(cmd.OutOrStdout(), resp.Item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|url>",
		Aliases: []string{"rm"},
		Short:   "Delete a thumbnail record and its embedded image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "image <id|url>",
		Short: "Write the stored thumbnail image to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Image(args[0])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(resp.Data)
					return err
				}
				if err := os.WriteFile(output, resp.Data, 0o644); err != nil {
					return fmt.Errorf("write image: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s, %d bytes)\n", output, resp.MimeType, len(resp.Data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func buildThumbnailRows(items []ipc.Thumbnail) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.Identity),
			item.Status,
			formatTimestamp(item.LastCaptureAt),
			item.URL,
		})
	}
	return rows
}

func renderThumbnailDetail(w io.Writer, item ipc.Thumbnail) {
	fmt.Fprintf(w, "ID:        %s\n", item.Identity)
	fmt.Fprintf(w, "URL:       %s\n", item.URL)
	if item.Title != "" {
		fmt.Fprintf(w, "Title:     %s\n", item.Title)
	}
	fmt.Fprintf(w, "Status:    %s\n", item.Status)
	if item.Filename != "" {
		fmt.Fprintf(w, "File:      %s\n", item.Filename)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:     %s\n", item.ErrorMessage)
	}
	if item.LastCaptureAt != "" {
		fmt.Fprintf(w, "Captured:  %s (%s)\n", item.LastCaptureAt, formatTimestamp(item.LastCaptureAt))
	}
	if item.UpdatedAt != "" {
		fmt.Fprintf(w, "Updated:   %s (%s)\n", item.UpdatedAt, formatTimestamp(item.UpdatedAt))
	}
}

func formatTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}
