package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tabshot/internal/api"
	"tabshot/internal/daemonctl"
	"tabshot/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tabshot daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tabshot daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopProcess(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the tabshot daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			printStartState(stdout, result.Start, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the launched daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				started := time.Now()
				resp, err := client.Ping()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resp.Status, time.Since(started).Round(time.Microsecond))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, pingCmd}
}

func printStartState(w io.Writer, result daemonctl.StartResult, started string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(w, started)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(w, "Daemon already running")
	default:
		if msg := strings.TrimSpace(result.Message); msg != "" {
			fmt.Fprintln(w, msg)
			return
		}
		fmt.Fprintln(w, "Start request sent")
	}
}

func renderStatus(w io.Writer, status *ipc.StatusResponse, colorize bool) {
	printSection(w, "Daemon", colorize)
	if status.Running {
		detail := "running"
		if status.PID > 0 {
			detail = fmt.Sprintf("running (pid %d)", status.PID)
		}
		fmt.Fprintln(w, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(w)

	printSection(w, "Capture", colorize)
	fmt.Fprintln(w, renderStatusLine("Batch", captureKind(status.Capture), captureSummary(status.Capture), colorize))
	if status.Capture.LastError != "" {
		fmt.Fprintln(w, renderStatusLine("Last error", statusError, status.Capture.LastError, colorize))
	}
	fmt.Fprintln(w)

	printSection(w, "Storage", colorize)
	fmt.Fprintln(w, renderStatusLine("Embedded", storageKind(status.Storage), storageSummary(status.Storage), colorize))
	if status.Storage.Directory != "" {
		fmt.Fprintln(w, renderStatusLine("External dir", statusOK, status.Storage.Directory, colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("External dir", statusInfo, "not set", colorize))
	}
	fmt.Fprintln(w)

	if len(status.Checks) > 0 {
		printSection(w, "Checks", colorize)
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusWarn
			}
			fmt.Fprintln(w, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
		fmt.Fprintln(w)
	}

	printSection(w, "Thumbnails", colorize)
	rows := buildStatusCountRows(status.Counts)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No thumbnails recorded")
		return
	}
	fmt.Fprint(w, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func captureKind(status api.CaptureStatus) statusKind {
	switch {
	case status.Running:
		return statusInfo
	case status.Failed > 0:
		return statusWarn
	case status.BatchID != "":
		return statusOK
	default:
		return statusInfo
	}
}

func captureSummary(status api.CaptureStatus) string {
	if status.BatchID == "" {
		return "idle"
	}
	state := "finished"
	if status.Running {
		state = "running"
		if status.CancelRequested {
			state = "cancelling"
		}
	}
	summary := fmt.Sprintf("%s %s: %d/%d processed, %d failed", state, shortID(status.BatchID), status.Processed, status.Total, status.Failed)
	if status.Running && status.Current != "" {
		summary += ", on " + status.Current
	}
	return summary
}

func storageKind(status api.StorageStatus) statusKind {
	switch {
	case status.Critical:
		return statusError
	case status.Low:
		return statusWarn
	default:
		return statusOK
	}
}

func storageSummary(status api.StorageStatus) string {
	summary := fmt.Sprintf("%s images in %s", humanize.Comma(int64(status.EmbeddedCount)), humanize.IBytes(uint64(max(status.EmbeddedBytes, 0))))
	if status.QuotaBytes > 0 {
		summary += fmt.Sprintf(" of %s (%.1f%%)", humanize.IBytes(uint64(status.QuotaBytes)), status.Percent)
	}
	return summary
}

func buildStatusCountRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key, count := range counts {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
