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
	c.normalizeProviders()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeProviders() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if c.DeepSeek.APIKey == "" {
		c.DeepSeek.APIKey = strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = strings.TrimSpace(os.Getenv("TTS_API_KEY"))
	}
	if c.Images.APIKey == "" {
		c.Images.APIKey = strings.TrimSpace(os.Getenv("IMAGES_API_KEY"))
	}
	if c.Images.StockAPIKey == "" {
		c.Images.StockAPIKey = strings.TrimSpace(os.Getenv("STOCK_IMAGES_API_KEY"))
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.DeepSeek.BaseURL == "" {
		c.DeepSeek.BaseURL = defaultDeepSeekBaseURL
	}
	if c.TTS.PrimaryVoice == "" {
		c.TTS.PrimaryVoice = defaultTTSPrimaryVoice
	}
	if c.TTS.FallbackVoice == "" {
		c.TTS.FallbackVoice = defaultTTSFallbackVoice
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
