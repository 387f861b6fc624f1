package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabshot/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through ntfy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderNotifyOutcome(resp, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the daemon's answer as JSON")
	return cmd
}

func renderNotifyOutcome(resp *ipc.TestNotificationResponse, colorize bool) string {
	if resp.Sent {
		message := resp.Message
		if message == "" {
			message = "test notification sent"
		}
		return renderStatusLine("Notification", statusOK, message, colorize)
	}
	message := resp.Message
	if message == "" {
		message = "not sent"
	}
	return renderStatusLine("Notification", statusWarn, message+" (set notifications.ntfy_topic in the config file)", colorize)
}
