package testsupport

import (
	"path/filepath"
	"testing"

	"patrol/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Classifier.APIKey = "test"
	cfg.Dispatch.Workers = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the dispatch worker count on the test config.
func WithWorkers(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dispatch.Workers = count
	}
}

// WithClassifierBaseURL points the classifier at a test server.
func WithClassifierBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Classifier.BaseURL = baseURL
	}
}

// WithNotifyBaseURL points the notifier at a test server.
func WithNotifyBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notify.BaseURL = baseURL
	}
}
