package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.TargetWidth <= 0 {
		return errors.New("capture.target_width must be positive")
	}
	if c.Capture.Quality <= 0 || c.Capture.Quality > 1 {
		return errors.New("capture.quality must be greater than 0 and at most 1")
	}
	for name, value := range map[string]int{
		"capture.settle_delay_ms":    c.Capture.SettleDelayMS,
		"capture.activate_settle_ms": c.Capture.ActivateSettleMS,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be zero or positive", name)
		}
	}
	for name, value := range map[string]int{
		"capture.load_timeout_ms":    c.Capture.LoadTimeoutMS,
		"capture.visible_timeout_ms": c.Capture.VisibleTimeoutMS,
		"capture.in_page_timeout_ms": c.Capture.InPageTimeoutMS,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.QuotaMB < 0 {
		return errors.New("storage.quota_mb must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
