package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabshot/internal/config"
	"tabshot/internal/ipc"
)

func newDirectoryCommand(ctx *commandContext) *cobra.Command {
	dirCmd := &cobra.Command{
		Use:   "dir",
		Short: "Manage the external thumbnail directory",
	}

	dirCmd.AddCommand(&cobra.Command{
		Use:   "set <path>",
		Short: "Use path as the external thumbnail directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absolutePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetDirectory(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "External directory set to %s\n", resp.Path)
				return nil
			})
		},
	})

	dirCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Release the external directory; new captures stay embedded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ClearDirectory(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "External directory cleared")
				return nil
			})
		},
	})

	dirCmd.AddCommand(&cobra.Command{
		Use:   "reconcile [path]",
		Short: "Relink records whose images live in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				abs, err := absolutePath(args[0])
				if err != nil {
					return err
				}
				path = abs
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reconcile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Relinked %d thumbnails\n", resp.Relinked)
				return nil
			})
		},
	})

	return dirCmd
}

// absolutePath expands ~ and resolves relative paths against the caller's
// working directory, which the daemon does not share.
func absolutePath(value string) (string, error) {
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return expanded, nil
}
