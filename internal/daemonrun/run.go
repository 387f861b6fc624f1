package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"tabshot/internal/browser"
	"tabshot/internal/config"
	"tabshot/internal/daemon"
	"tabshot/internal/deps"
	"tabshot/internal/events"
	"tabshot/internal/ipc"
	"tabshot/internal/logging"
	"tabshot/internal/notifications"
	"tabshot/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the tabshot daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if opts.Development {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open metadata store", logging.Error(err))
		return err
	}
	defer st.Close()

	chrome, err := browser.NewChrome(signalCtx, cfg.Browser, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "browser unavailable", "browser_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install Chromium or set browser.exec_path / browser.remote_url"),
			logging.String(logging.FieldImpact, "daemon cannot capture thumbnails"),
		)
		return err
	}
	defer chrome.Close()

	hub := events.NewHub(0)
	notifier := notifications.NewService(cfg)

	d, err := daemon.New(cfg, daemon.Deps{
		Browser:  chrome,
		Store:    st,
		Hub:      hub,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "captures are rejected until the daemon starts"),
		)
	}
	if addr := d.APIAddress(); addr != "" {
		logger.Info("http api ready", logging.String("address", addr))
	}

	<-signalCtx.Done()
	logger.Info("tabshot daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	chrome := deps.CheckBrowser(cfg.Browser.ExecPath)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("browser_available", chrome.Available),
		logging.String("browser_binary", chrome.Command),
		logging.Bool("remote_browser", strings.TrimSpace(cfg.Browser.RemoteURL) != ""),
		logging.Bool("headless", cfg.Browser.Headless),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
