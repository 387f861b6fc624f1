package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tabshot/internal/api"
	"tabshot/internal/events"
	"tabshot/internal/ipc"
	"tabshot/internal/logs"
	"tabshot/internal/logstream"
	"tabshot/internal/store"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64
	var limit int
	var batch string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print capture events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			apiClient, err := logs.NewEventClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("event api client: %w", err)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				var writeErr error
				printed, err := logstream.Events(cmd.Context(), apiClient, client, logstream.Options{
					Since:  since,
					Lines:  limit,
					Follow: follow,
				}, func(evt api.Event) {
					if batch != "" && !strings.HasPrefix(evt.BatchID, batch) {
						return
					}
					if asJSON {
						if writeErr == nil {
							writeErr = writeJSONLine(cmd, evt)
						}
						return
					}
					fmt.Fprintln(out, formatEvent(evt, colorize))
				})
				if errors.Is(err, context.Canceled) {
					err = nil
				}
				if err != nil {
					return err
				}
				if writeErr != nil {
					return writeErr
				}
				if !printed && !follow && !asJSON {
					fmt.Fprintln(out, "No events")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Resume after this event sequence")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum events per request")
	cmd.Flags().StringVar(&batch, "batch", "", "Only show events for a batch id (prefix match)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output one JSON object per event")
	return cmd
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var batch, pageURL, level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := ""
			if strings.TrimSpace(pageURL) != "" {
				derived, err := store.IdentityFor(pageURL)
				if err != nil {
					return fmt.Errorf("--url: %w", err)
				}
				identity = derived
			}
			filter := logs.LineFilter(batch, identity, level)
			if err := filter.Validate(); err != nil {
				return fmt.Errorf("--level: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				_, err := logstream.Lines(cmd.Context(), client, logstream.Options{
					Lines:  lines,
					Follow: follow,
					Filter: filter,
				}, func(line string) {
					fmt.Fprintln(out, line)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&batch, "batch", "", "Only show lines logged for this batch id")
	cmd.Flags().StringVar(&pageURL, "url", "", "Only show lines logged for this page's thumbnail")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}

func formatEvent(evt api.Event, colorize bool) string {
	kind := statusInfo
	switch evt.Type {
	case events.Updated:
		kind = statusOK
	case events.Failed:
		kind = statusError
	}
	label := paint(kind, strings.ToUpper(string(evt.Type)), colorize)
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %-7s %s", evt.Timestamp.Local().Format(time.TimeOnly), evt.Sequence, label, evt.URL)
	if evt.BatchID != "" {
		fmt.Fprintf(&b, " [%s]", shortID(evt.BatchID))
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, ": %s", evt.Error)
	}
	return b.String()
}
