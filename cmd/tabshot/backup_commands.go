package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tabshot/internal/ipc"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and import thumbnail metadata",
	}
	backupCmd.AddCommand(newBackupExportCommand(ctx))
	backupCmd.AddCommand(newBackupImportCommand(ctx))
	return backupCmd
}

func newBackupExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var images bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Export(images)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return writeJSON(cmd, resp.Document)
				}
				data, err := json.MarshalIndent(resp.Document, "", "  ")
				if err != nil {
					return fmt.Errorf("encode backup: %w", err)
				}
				if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d thumbnails to %s (%s)\n",
					len(resp.Document.Items), output, humanize.Bytes(uint64(len(data)+1)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	cmd.Flags().BoolVar(&images, "images", false, "Include embedded image data")
	return cmd
}

func newBackupImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Restore thumbnails from a backup document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Import(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d thumbnails (%d skipped)\n", resp.Imported, resp.Skipped)
				return nil
			})
		},
	}
}
