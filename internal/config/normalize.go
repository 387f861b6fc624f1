package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBrowser(); err != nil {
		return err
	}
	c.normalizeCapture()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TABSHOT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeBrowser() error {
	c.Browser.ExecPath = strings.TrimSpace(c.Browser.ExecPath)
	if c.Browser.ExecPath == "" {
		if value, ok := os.LookupEnv("TABSHOT_CHROME_PATH"); ok {
			c.Browser.ExecPath = strings.TrimSpace(value)
		}
	}
	if c.Browser.ExecPath != "" {
		var err error
		if c.Browser.ExecPath, err = expandPath(c.Browser.ExecPath); err != nil {
			return fmt.Errorf("browser.exec_path: %w", err)
		}
	}
	c.Browser.RemoteURL = strings.TrimSpace(c.Browser.RemoteURL)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = defaultWindowWidth
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = defaultWindowHeight
	}
	return nil
}

func (c *Config) normalizeCapture() {
	if c.Capture.TargetWidth == 0 {
		c.Capture.TargetWidth = defaultTargetWidth
	}
	if c.Capture.Quality == 0 {
		c.Capture.Quality = defaultQuality
	}
	if c.Capture.LoadTimeoutMS == 0 {
		c.Capture.LoadTimeoutMS = defaultLoadTimeoutMS
	}
	if c.Capture.VisibleTimeoutMS == 0 {
		c.Capture.VisibleTimeoutMS = defaultVisibleTimeoutMS
	}
	if c.Capture.InPageTimeoutMS == 0 {
		c.Capture.InPageTimeoutMS = defaultInPageTimeoutMS
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.ExternalDir = strings.TrimSpace(c.Storage.ExternalDir)
	if c.Storage.ExternalDir != "" {
		var err error
		if c.Storage.ExternalDir, err = expandPath(c.Storage.ExternalDir); err != nil {
			return fmt.Errorf("storage.external_dir: %w", err)
		}
	}
	if c.Storage.CacheEntries < 0 {
		c.Storage.CacheEntries = 0
	}
	if c.Storage.CacheTTLSeconds <= 0 {
		c.Storage.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
