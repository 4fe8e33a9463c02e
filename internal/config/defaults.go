package config

const (
	defaultDataDir            = "~/.local/share/showrunner/data"
	defaultLogDir             = "~/.local/share/showrunner/logs"
	defaultWorkDir            = "~/.local/share/showrunner/work"
	defaultAPIBind            = "127.0.0.1:7511"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/showrunner/showrunner"
	defaultLLMTitle           = "Showrunner"
	defaultLLMTimeoutSeconds  = 60
	defaultDeepSeekBaseURL    = "https://api.deepseek.com/chat/completions"
	defaultDeepSeekModel      = "deepseek-chat"
	defaultTTSBaseURL         = "https://texttospeech.googleapis.com/v1"
	defaultTTSPrimaryVoice    = "chirp3-hd"
	defaultTTSFallbackVoice   = "standard"
	defaultTTSTimeoutSeconds  = 120
	defaultImagesTimeoutSecs  = 120
	defaultNotifyTimeout      = 10
	defaultNotifyDedupSeconds = 600
	defaultMaxRetries         = 3
	defaultRetryBaseDelaySecs = 1
	defaultRetryMaxDelaySecs  = 30
	defaultTopicMaxRetries    = 2
	defaultStageTimeoutSecs   = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			WorkDir: defaultWorkDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		DeepSeek: DeepSeek{
			BaseURL:        defaultDeepSeekBaseURL,
			Model:          defaultDeepSeekModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			PrimaryVoice:   defaultTTSPrimaryVoice,
			FallbackVoice:  defaultTTSFallbackVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Images: Images{
			TimeoutSeconds: defaultImagesTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			RunLifecycle:       true,
			ReviewAlerts:       true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
		},
		Workflow: Workflow{
			MaxRetries:         defaultMaxRetries,
			RetryBaseDelaySecs: defaultRetryBaseDelaySecs,
			RetryMaxDelaySecs:  defaultRetryMaxDelaySecs,
			TopicMaxRetries:    defaultTopicMaxRetries,
			DefaultTimeoutSecs: defaultStageTimeoutSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
