package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/patrol/config.toml"
		}
		return fmt.Errorf("classifier.api_key is required. Set PATROL_CLASSIFIER_API_KEY env var or edit %s (create with 'patrol config init')", defaultPath)
	}
	if c.Classifier.BaseURL == "" {
		return errors.New("classifier.base_url must be set")
	}
	if _, err := url.Parse(c.Classifier.BaseURL); err != nil {
		return fmt.Errorf("classifier.base_url is not a valid URL: %w", err)
	}
	if c.Classifier.Model == "" {
		return errors.New("classifier.model must be set")
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.Workers < 1 {
		return errors.New("dispatch.workers must be at least 1")
	}
	if c.Dispatch.QueuePurgeHours < 1 {
		return errors.New("dispatch.queue_purge_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notify.BaseURL)
	if err != nil {
		return fmt.Errorf("notify.base_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("notify.base_url must use http or https")
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return errors.New("notify.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
