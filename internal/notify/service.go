// Package notify pushes inspection events to the presentation service.
//
// Delivery is best effort: failures are logged and never block or fail the
// inspection that produced them. When no base URL is configured, a noop
// implementation is returned.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"patrol/internal/config"
	"patrol/internal/logging"
)

const userAgent = "Patrol-Go/0.1.0"

// ResultEvent is the payload pushed when an inspection finishes.
type ResultEvent struct {
	TaskID            string         `json:"task_id"`
	JobType           int            `json:"task_type"`
	StationID         int            `json:"station_id"`
	Status            string         `json:"status"`
	Result            map[string]any `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	ImagePath         string         `json:"image_path,omitempty"`
	ProcessingSeconds float64        `json:"processing_time"`
	Timestamp         string         `json:"timestamp"`
}

// Service defines the notification surface exposed to dispatch components.
type Service interface {
	TaskResult(ctx context.Context, event ResultEvent) error
	QueueChange(ctx context.Context, action, taskID string) error
}

// NewService builds a notification service backed by the configured
// presentation endpoint. When no base URL is configured, a noop
// implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	baseURL := strings.TrimSpace(cfg.Notify.BaseURL)
	if baseURL == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &httpService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logging.WithComponent(logger, "notify"),
	}
}

type httpService struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func (s *httpService) TaskResult(ctx context.Context, event ResultEvent) error {
	return s.post(ctx, "/api/notify/task_result", event)
}

func (s *httpService) QueueChange(ctx context.Context, action, taskID string) error {
	payload := map[string]string{
		"action":  action,
		"task_id": taskID,
	}
	return s.post(ctx, "/api/notify/task_queue_update", payload)
}

func (s *httpService) post(ctx context.Context, path string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("notify: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed",
			logging.String("path", path), logging.Error(err))
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Warn("notification rejected",
			logging.String("path", path), logging.Int("status_code", resp.StatusCode))
		return fmt.Errorf("notify: http %d from %s", resp.StatusCode, path)
	}
	return nil
}

type noopService struct{}

func (noopService) TaskResult(context.Context, ResultEvent) error { return nil }

func (noopService) QueueChange(context.Context, string, string) error { return nil }
