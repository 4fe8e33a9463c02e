package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxRetries < 0 {
		return errors.New("workflow.max_retries must not be negative")
	}
	if c.Workflow.RetryBaseDelaySecs <= 0 {
		return errors.New("workflow.retry_base_delay_seconds must be positive")
	}
	if c.Workflow.RetryMaxDelaySecs < c.Workflow.RetryBaseDelaySecs {
		return errors.New("workflow.retry_max_delay_seconds must be >= retry_base_delay_seconds")
	}
	if c.Workflow.TopicMaxRetries < 1 {
		return errors.New("workflow.topic_max_retries must be at least 1")
	}
	if c.Workflow.DefaultTimeoutSecs <= 0 {
		return errors.New("workflow.default_timeout_seconds must be positive")
	}
	for stage, secs := range c.Workflow.StageTimeoutSecs {
		if secs <= 0 {
			return fmt.Errorf("workflow.stage_timeout_seconds[%s] must be positive", stage)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must not be negative")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must not be negative")
	}
	return nil
}
