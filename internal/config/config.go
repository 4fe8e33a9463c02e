package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	WorkDir string `toml:"work_dir"`
	APIBind string `toml:"api_bind"`
}

// LLM contains the primary text-generation provider settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DeepSeek contains the fallback text-generation provider settings.
type DeepSeek struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains speech-synthesis provider settings. The primary voice is the
// high-quality chirp3-hd tier; standard is the fallback.
type TTS struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	PrimaryVoice   string `toml:"primary_voice"`
	FallbackVoice  string `toml:"fallback_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains visual-generation provider settings.
type Images struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	StockAPIKey    string `toml:"stock_api_key"`
	StockBaseURL   string `toml:"stock_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	RunLifecycle       bool   `toml:"run_lifecycle"`
	ReviewAlerts       bool   `toml:"review_alerts"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Workflow contains pipeline timing and retry configuration.
type Workflow struct {
	MaxRetries         int            `toml:"max_retries"`
	RetryBaseDelaySecs int            `toml:"retry_base_delay_seconds"`
	RetryMaxDelaySecs  int            `toml:"retry_max_delay_seconds"`
	TopicMaxRetries    int            `toml:"topic_max_retries"`
	StageTimeoutSecs   map[string]int `toml:"stage_timeout_seconds"`
	DefaultTimeoutSecs int            `toml:"default_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for showrunner.
//
// Configuration sections by subsystem:
//   - Paths: data/log/work directories and API bind address
//   - LLM / DeepSeek: text-generation provider chain
//   - TTS: speech-synthesis provider chain
//   - Images: visual-generation provider chain
//   - Notifications: ntfy push notification settings
//   - Workflow: retry policy, per-stage timeouts, topic queue bounds
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	DeepSeek      DeepSeek      `toml:"deepseek"`
	TTS           TTS           `toml:"tts"`
	Images        Images        `toml:"images"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/showrunner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("showrunner.toml")
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

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Redacted returns a copy safe for display: provider API keys are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.LLM.APIKey = maskSecret(out.LLM.APIKey)
	out.DeepSeek.APIKey = maskSecret(out.DeepSeek.APIKey)
	out.TTS.APIKey = maskSecret(out.TTS.APIKey)
	out.Images.APIKey = maskSecret(out.Images.APIKey)
	out.Images.StockAPIKey = maskSecret(out.Images.StockAPIKey)
	return out
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}

// StageTimeoutSeconds returns the configured timeout for a stage, falling
// back to the workflow default when the stage has no override.
func (c *Config) StageTimeoutSeconds(stage string) int {
	if secs, ok := c.Workflow.StageTimeoutSecs[stage]; ok && secs > 0 {
		return secs
	}
	return c.Workflow.DefaultTimeoutSecs
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
