package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"patrol/internal/api"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeDaemon(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestQueueListRendersTasks(t *testing.T) {
	addr := fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(api.Success(map[string]any{
			"count": 1,
			"tasks": []map[string]any{{
				"task_id":    "abc-123",
				"task_type":  2,
				"station_id": 4,
				"priority":   "high",
				"created_at": "2026-08-29 10:00:00",
			}},
		}))
	})

	out, err := runCommand(t, "--api", addr, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "abc-123") || !strings.Contains(out, "high") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestQueueAddSendsRequest(t *testing.T) {
	var received map[string]any
	addr := fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/add" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(api.Success(map[string]any{"task_id": "new-task"}))
	})

	out, err := runCommand(t, "--api", addr,
		"queue", "add", "--station", "3", "--type", "1", "--priority", "low",
		"--params", `{"warning_threshold":1.2}`)
	if err != nil {
		t.Fatalf("queue add failed: %v", err)
	}
	if !strings.Contains(out, "new-task") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if received["station_id"] != float64(3) || received["priority"] != "low" {
		t.Fatalf("unexpected request body: %#v", received)
	}
	params, ok := received["params"].(map[string]any)
	if !ok || params["warning_threshold"] != float64(1.2) {
		t.Fatalf("params not forwarded: %#v", received["params"])
	}
}

func TestQueueRemoveSurfacesDaemonError(t *testing.T) {
	addr := fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.Failure(api.CodeNotFound, "task not found"))
	})

	_, err := runCommand(t, "--api", addr, "queue", "remove", "missing-id")
	if err == nil {
		t.Fatal("expected error for missing task")
	}
	if !strings.Contains(err.Error(), api.CodeNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusJSONOutput(t *testing.T) {
	addr := fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Success(api.HealthView{
			Status:     "healthy",
			QueueDepth: 2,
			JobTypes: []api.JobTypeView{
				{Type: 1, Name: "pointer_reading", Description: "analog gauge reading", UsesModel: true},
			},
		}))
	})

	out, err := runCommand(t, "--api", addr, "--json", "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded["status"] != "healthy" || decoded["queue_depth"] != float64(2) {
		t.Fatalf("unexpected payload: %#v", decoded)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output does not mention target path:\n%s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}
