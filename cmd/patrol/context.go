package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"patrol/internal/api"
	"patrol/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	client *http.Client
}

func newCommandContext(configFlag, apiFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		jsonFlag:   jsonFlag,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// apiBase resolves the daemon API address, preferring the --api flag over
// the configured bind address.
func (c *commandContext) apiBase() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := cfg.Paths.APIBind
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	if host, rest, ok := strings.Cut(bind, ":"); ok && (host == "0.0.0.0" || host == "") {
		bind = "127.0.0.1:" + rest
	}
	return "http://" + bind, nil
}

func (c *commandContext) apiGet(path string) (*api.Response, error) {
	return c.apiDo(http.MethodGet, path, nil)
}

func (c *commandContext) apiPost(path string, body any) (*api.Response, error) {
	return c.apiDo(http.MethodPost, path, body)
}

func (c *commandContext) apiDelete(path string) (*api.Response, error) {
	return c.apiDo(http.MethodDelete, path, nil)
}

func (c *commandContext) apiDo(method, path string, body any) (*api.Response, error) {
	base, err := c.apiBase()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w (is `patrol serve` running?)", base, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope api.Response
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if envelope.Status != "success" {
		if envelope.Error != nil {
			return &envelope, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return &envelope, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return &envelope, nil
}

// dataMap extracts the envelope data as a generic map for table rendering.
func dataMap(envelope *api.Response) map[string]any {
	if data, ok := envelope.Data.(map[string]any); ok {
		return data
	}
	return map[string]any{}
}
