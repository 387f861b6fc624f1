package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tabshot/internal/ipc"
)

// batchPollInterval paces status polling while waiting on a batch.
const batchPollInterval = 250 * time.Millisecond

func newCaptureCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newCaptureCommand(ctx),
		newCancelCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var forceActive bool
	var settle time.Duration
	var fromFile string
	var wait bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit [url...]",
		Short: "Queue a batch of pages for capture",
		Long: "Queue a batch of pages for capture. URLs come from the arguments, " +
			"from --file (one per line), or from stdin when --file is \"-\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if fromFile != "" {
				extra, err := readURLList(cmd.InOrStdin(), fromFile)
				if err != nil {
					return err
				}
				urls = append(urls, extra...)
			}
			if len(urls) == 0 {
				return errors.New("no URLs given")
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubmitBatch(ipc.SubmitBatchRequest{
					URLs:          urls,
					ForceActive:   forceActive,
					SettleDelayMS: int(settle / time.Millisecond),
				})
				if err != nil {
					return err
				}
				if asJSON && !wait {
					return writeJSON(cmd, resp)
				}
				if !asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "Batch %s accepted (%d URLs)\n", resp.BatchID, resp.Total)
				}
				if !wait {
					return nil
				}
				status, err := waitForBatch(cmd.Context(), client, resp.BatchID, func(processed, total int) {
					if !asJSON {
						fmt.Fprintf(cmd.OutOrStdout(), "  %d/%d processed\n", processed, total)
					}
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status.Capture)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch finished: %d processed, %d failed\n", status.Capture.Processed, status.Capture.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&forceActive, "force-active", false, "Bring each tab to the foreground before capturing")
	cmd.Flags().DurationVar(&settle, "settle", 0, "Extra delay after load before capturing (default from config)")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read URLs from a file, or - for stdin")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the batch to finish")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var forceActive bool
	var settle time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Capture a single page and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Capture(ipc.CaptureRequest{
					URL:           args[0],
					ForceActive:   forceActive,
					SettleDelayMS: int(settle / time.Millisecond),
				})
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
	cmd.Flags().BoolVar(&forceActive, "force-active", false, "Bring the tab to the foreground before capturing")
	cmd.Flags().DurationVar(&settle, "settle", 0, "Extra delay after load before capturing (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running capture batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel()
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No batch running")
				}
				return nil
			})
		},
	}
}

// waitForBatch polls daemon status until batchID is no longer running.
// onProgress fires whenever the processed count moves.
func waitForBatch(ctx context.Context, client *ipc.Client, batchID string, onProgress func(processed, total int)) (*ipc.StatusResponse, error) {
	ticker := time.NewTicker(batchPollInterval)
	defer ticker.Stop()

	last := -1
	for {
		status, err := client.Status()
		if err != nil {
			return nil, err
		}
		capture := status.Capture
		if capture.BatchID != batchID {
			return nil, fmt.Errorf("batch %s was replaced by %s", batchID, capture.BatchID)
		}
		if capture.Processed != last && onProgress != nil {
			last = capture.Processed
			onProgress(capture.Processed, capture.Total)
		}
		if !capture.Running {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func readURLList(stdin io.Reader, path string) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open url list: %w", err)
		}
		defer f.Close()
		r = f
	}
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}
