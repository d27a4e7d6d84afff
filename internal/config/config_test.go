package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"patrol/internal/config"
)

func TestLoadDefaultsExpandPathsAndUseEnvKey(t *testing.T) {
	t.Setenv("PATROL_CLASSIFIER_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "patrol")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7810" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Classifier.APIKey != "env-key" {
		t.Fatalf("expected classifier key from env, got %q", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.Model != config.Default().Classifier.Model {
		t.Fatalf("unexpected model: %q", cfg.Classifier.Model)
	}
	if cfg.Dispatch.Workers != 10 {
		t.Fatalf("unexpected worker count: %d", cfg.Dispatch.Workers)
	}
	if cfg.Notify.BaseURL != "" {
		t.Fatalf("expected notifications disabled by default, got %q", cfg.Notify.BaseURL)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "patrol.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.ImagesDir() != filepath.Join(wantData, "images") {
		t.Fatalf("unexpected images dir: %q", cfg.ImagesDir())
	}
}

func TestLoadExplicitFileOverridesDefaults(t *testing.T) {
	t.Setenv("PATROL_CLASSIFIER_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "0.0.0.0:9000"

[classifier]
api_key = "file-key"
model = "qwen-vl-max"

[dispatch]
workers = 4

[notify]
base_url = "http://127.0.0.1:5000/"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Classifier.APIKey != "file-key" {
		t.Fatalf("unexpected api key: %q", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.Model != "qwen-vl-max" {
		t.Fatalf("unexpected model: %q", cfg.Classifier.Model)
	}
	if cfg.Dispatch.Workers != 4 {
		t.Fatalf("unexpected workers: %d", cfg.Dispatch.Workers)
	}
	if cfg.Notify.BaseURL != "http://127.0.0.1:5000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Notify.BaseURL)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	t.Setenv("PATROL_CLASSIFIER_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error when classifier api key is missing")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Classifier.APIKey = "key"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Dispatch.Workers = 0 }},
		{"zero purge hours", func(c *config.Config) { c.Dispatch.QueuePurgeHours = 0 }},
		{"empty bind", func(c *config.Config) { c.Paths.APIBind = "" }},
		{"empty model", func(c *config.Config) { c.Classifier.Model = "" }},
		{"zero classifier timeout", func(c *config.Config) { c.Classifier.TimeoutSeconds = 0 }},
		{"bad notify scheme", func(c *config.Config) { c.Notify.BaseURL = "ftp://somewhere" }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleWritesParsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	t.Setenv("PATROL_CLASSIFIER_API_KEY", "sample-key")
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
