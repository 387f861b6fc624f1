package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Browser contains configuration for the headless browser used for captures.
type Browser struct {
	// ExecPath points at a Chrome/Chromium binary. Empty lets chromedp search PATH.
	ExecPath string `toml:"exec_path"`
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// instead of launching one.
	RemoteURL    string `toml:"remote_url"`
	Headless     bool   `toml:"headless"`
	WindowWidth  int    `toml:"window_width"`
	WindowHeight int    `toml:"window_height"`
	UserAgent    string `toml:"user_agent"`
}

// Capture contains timing and output settings for the capture pipeline.
type Capture struct {
	TargetWidth      int     `toml:"target_width"`
	Quality          float64 `toml:"quality"`
	SettleDelayMS    int     `toml:"settle_delay_ms"`
	LoadTimeoutMS    int     `toml:"load_timeout_ms"`
	VisibleTimeoutMS int     `toml:"visible_timeout_ms"`
	InPageTimeoutMS  int     `toml:"in_page_timeout_ms"`
	ActivateSettleMS int     `toml:"activate_settle_ms"`
	ForceActive      bool    `toml:"force_active"`
}

// Storage contains configuration for the thumbnail storage tiers.
type Storage struct {
	// ExternalDir is acquired as the external directory on daemon start when set.
	ExternalDir     string `toml:"external_dir"`
	CacheEntries    int    `toml:"cache_entries"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
	QuotaMB         int    `toml:"quota_mb"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tabshot.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Browser: headless browser launch or attach settings
//   - Capture: render waits, fallback timeouts, output size and quality
//   - Storage: external directory, asset cache, quota
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Browser       Browser       `toml:"browser"`
	Capture       Capture       `toml:"capture"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tabshot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tabshot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The external directory is not created here; it is only ever used once the
// user acquires it explicitly.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tabshot.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "tabshot.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tabshot.lock")
}

// LogPath returns the daemon's JSON log file, or "" when file logging is off.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "tabshot.log")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "tabshot.pid")
}

// CaptureTimings is the capture section converted to durations.
type CaptureTimings struct {
	SettleDelay    time.Duration
	LoadTimeout    time.Duration
	VisibleTimeout time.Duration
	InPageTimeout  time.Duration
	ActivateSettle time.Duration
}

// Timings returns the configured capture waits as durations.
func (c *Config) Timings() CaptureTimings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return CaptureTimings{
		SettleDelay:    ms(c.Capture.SettleDelayMS),
		LoadTimeout:    ms(c.Capture.LoadTimeoutMS),
		VisibleTimeout: ms(c.Capture.VisibleTimeoutMS),
		InPageTimeout:  ms(c.Capture.InPageTimeoutMS),
		ActivateSettle: ms(c.Capture.ActivateSettleMS),
	}
}

// CacheTTL returns the embedded asset cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Storage.CacheTTLSeconds) * time.Second
}

// QuotaBytes returns the embedded storage quota in bytes.
func (c *Config) QuotaBytes() int64 {
	return int64(c.Storage.QuotaMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
