package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"patrol/internal/logging"
	"patrol/internal/notify"
	"patrol/internal/testsupport"
)

func TestTaskResultPostsPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNotifyBaseURL(server.URL))
	service := notify.NewService(cfg, logging.NewNop())

	err := service.TaskResult(context.Background(), notify.ResultEvent{
		TaskID:            "task-9",
		JobType:           3,
		StationID:         2,
		Status:            "danger",
		Result:            map[string]any{"has_smoke": true, "density": "heavy"},
		ProcessingSeconds: 1.2,
		Timestamp:         "2026-08-29 10:15:00",
	})
	if err != nil {
		t.Fatalf("TaskResult failed: %v", err)
	}
	if gotPath != "/api/notify/task_result" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotBody["task_id"] != "task-9" || gotBody["status"] != "danger" {
		t.Fatalf("unexpected payload: %#v", gotBody)
	}
	if gotBody["timestamp"] != "2026-08-29 10:15:00" {
		t.Fatalf("timestamp missing from payload: %#v", gotBody)
	}
}

func TestQueueChangePostsActionAndTask(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNotifyBaseURL(server.URL))
	service := notify.NewService(cfg, logging.NewNop())

	if err := service.QueueChange(context.Background(), "delete", "task-1"); err != nil {
		t.Fatalf("QueueChange failed: %v", err)
	}
	if gotPath != "/api/notify/task_queue_update" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotBody["action"] != "delete" || gotBody["task_id"] != "task-1" {
		t.Fatalf("unexpected payload: %#v", gotBody)
	}
}

func TestHTTPErrorsAreReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNotifyBaseURL(server.URL))
	service := notify.NewService(cfg, logging.NewNop())

	if err := service.QueueChange(context.Background(), "add", "t"); err == nil {
		t.Fatal("expected error for http 502")
	}
}

func TestEmptyBaseURLYieldsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notify.NewService(cfg, logging.NewNop())

	if err := service.TaskResult(context.Background(), notify.ResultEvent{}); err != nil {
		t.Fatalf("noop TaskResult should not fail: %v", err)
	}
	if err := service.QueueChange(context.Background(), "add", "t"); err != nil {
		t.Fatalf("noop QueueChange should not fail: %v", err)
	}
}
