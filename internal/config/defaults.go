package config

const (
	defaultDataDir                  = "~/.local/share/patrol"
	defaultLogDir                   = "~/.local/share/patrol/logs"
	defaultAPIBind                  = "127.0.0.1:7810"
	defaultClassifierBaseURL        = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultClassifierModel          = "qwen-vl-plus"
	defaultClassifierTimeoutSeconds = 120
	defaultDispatchWorkers          = 10
	defaultQueuePurgeHours          = 24
	defaultNotifyTimeoutSeconds     = 5
	defaultLogLevel                 = "info"
	defaultLogFormat                = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Classifier: Classifier{
			BaseURL:        defaultClassifierBaseURL,
			Model:          defaultClassifierModel,
			TimeoutSeconds: defaultClassifierTimeoutSeconds,
		},
		Dispatch: Dispatch{
			Workers:         defaultDispatchWorkers,
			QueuePurgeHours: defaultQueuePurgeHours,
		},
		Notify: Notify{
			TimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
