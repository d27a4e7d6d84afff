package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"patrol/internal/api"
	"patrol/internal/dispatch"
	"patrol/internal/imagestore"
	"patrol/internal/logging"
	"patrol/internal/notify"
	"patrol/internal/server"
	"patrol/internal/store"
	"patrol/internal/testsupport"
)

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string, []byte, string) (map[string]any, error) {
	return map[string]any{"has_smoke": false, "density": "none", "confidence": 0.9}, nil
}

type recordedNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordedNotifier) TaskResult(context.Context, notify.ResultEvent) error { return nil }

func (n *recordedNotifier) QueueChange(_ context.Context, action, taskID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, action+":"+taskID)
	return nil
}

type fixture struct {
	server   *server.Server
	store    *store.Store
	notifier *recordedNotifier
}

func newFixture(t *testing.T, startPool bool) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordedNotifier{}
	pool := dispatch.NewPool(2)
	if startPool {
		pool.Start(context.Background())
		t.Cleanup(pool.Stop)
	}
	dispatcher := dispatch.New(st, imagestore.New(cfg.ImagesDir()), stubClassifier{}, notifier, pool, logging.NewNop())
	srv := server.New(cfg, st, dispatcher, notifier, logging.NewNop())
	return &fixture{server: srv, store: st, notifier: notifier}
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var envelope api.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func multipartSubmit(t *testing.T, srv *server.Server, image []byte, fields map[string]string) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if image != nil {
		part, err := writer.CreateFormFile("image", "inspection.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/process", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var envelope api.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(t, false)

	rec, envelope := multipartSubmit(t, f.server, testsupport.TinyJPEG(t), map[string]string{
		"task_type":  "3",
		"station_id": "2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if envelope.Status != "success" {
		t.Fatalf("unexpected envelope status: %q", envelope.Status)
	}
	if envelope.Timestamp == "" {
		t.Fatal("timestamp missing from envelope")
	}
	if _, err := time.Parse(api.TimestampLayout, envelope.Timestamp); err != nil {
		t.Fatalf("timestamp not in wall-clock layout: %q", envelope.Timestamp)
	}

	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %#v", envelope.Data)
	}
	if data["status"] != "processing" {
		t.Fatalf("expected processing receipt, got %v", data["status"])
	}
	if data["task_id"] == "" || data["task_id"] == nil {
		t.Fatal("task_id missing from receipt")
	}
}

func TestProcessErrorCodes(t *testing.T) {
	f := newFixture(t, false)

	cases := []struct {
		name     string
		image    []byte
		fields   map[string]string
		wantCode string
		wantHTTP int
	}{
		{
			name:     "unknown task type",
			image:    testsupport.TinyJPEG(t),
			fields:   map[string]string{"task_type": "9", "station_id": "1"},
			wantCode: api.CodeInvalidTaskType,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "non numeric task type",
			image:    testsupport.TinyJPEG(t),
			fields:   map[string]string{"task_type": "abc", "station_id": "1"},
			wantCode: api.CodeInvalidTaskType,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "bad image payload",
			image:    []byte("plain text"),
			fields:   map[string]string{"task_type": "1", "station_id": "1"},
			wantCode: api.CodeInvalidImage,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "missing image",
			image:    nil,
			fields:   map[string]string{"task_type": "1", "station_id": "1"},
			wantCode: api.CodeInvalidImage,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "malformed params json",
			image:    testsupport.TinyJPEG(t),
			fields:   map[string]string{"task_type": "2", "station_id": "1", "params": "{not json"},
			wantCode: api.CodeInvalidJSON,
			wantHTTP: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, envelope := multipartSubmit(t, f.server, tc.image, tc.fields)
			if rec.Code != tc.wantHTTP {
				t.Fatalf("unexpected http status: %d", rec.Code)
			}
			if envelope.Status != "error" || envelope.Error == nil {
				t.Fatalf("expected error envelope, got %#v", envelope)
			}
			if envelope.Error.Code != tc.wantCode {
				t.Fatalf("got code %q want %q", envelope.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestProcessRejectsOversizeUpload(t *testing.T) {
	f := newFixture(t, false)

	oversize := make([]byte, 33<<20)
	copy(oversize, testsupport.TinyPNG(t))

	rec, envelope := multipartSubmit(t, f.server, oversize, map[string]string{
		"task_type":  "1",
		"station_id": "1",
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversize upload, got %d", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != api.CodeInvalidImage {
		t.Fatalf("unexpected error payload: %#v", envelope.Error)
	}

	records, err := f.store.Records(context.Background(), store.RecordFilter{})
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("oversize upload must not create records, got %d", len(records))
	}
}

func TestTasksAddListDelete(t *testing.T) {
	f := newFixture(t, false)

	rec, envelope := doJSON(t, f.server, http.MethodPost, "/api/tasks/add", map[string]any{
		"station_id": 3,
		"task_type":  1,
		"priority":   "high",
		"params":     map[string]any{"warning_threshold": 1.5},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", rec.Code, rec.Body.String())
	}
	data := envelope.Data.(map[string]any)
	taskID, _ := data["task_id"].(string)
	if taskID == "" {
		t.Fatal("task_id missing")
	}

	rec, envelope = doJSON(t, f.server, http.MethodGet, "/api/tasks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rec.Code)
	}
	listData := envelope.Data.(map[string]any)
	if listData["count"] != float64(1) {
		t.Fatalf("expected one task, got %v", listData["count"])
	}
	tasks := listData["tasks"].([]any)
	first := tasks[0].(map[string]any)
	if first["task_id"] != taskID || first["priority"] != "high" {
		t.Fatalf("unexpected task view: %#v", first)
	}

	rec, _ = doJSON(t, f.server, http.MethodDelete, "/api/tasks/"+taskID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rec.Code)
	}

	rec, envelope = doJSON(t, f.server, http.MethodDelete, "/api/tasks/"+taskID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != api.CodeNotFound {
		t.Fatalf("unexpected error payload: %#v", envelope.Error)
	}
}

func TestTasksAddValidation(t *testing.T) {
	f := newFixture(t, false)

	cases := []map[string]any{
		{"station_id": 0, "task_type": 1},
		{"station_id": 1, "task_type": 5},
		{"station_id": 1, "task_type": 1, "priority": "urgent"},
	}
	for _, body := range cases {
		rec, envelope := doJSON(t, f.server, http.MethodPost, "/api/tasks/add", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, rec.Code)
		}
		if envelope.Error == nil || envelope.Error.Code != api.CodeInvalidRequest {
			t.Fatalf("body %v: unexpected error: %#v", body, envelope.Error)
		}
	}
}

func TestHealthPayload(t *testing.T) {
	f := newFixture(t, false)

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health failed: %d", rec.Code)
	}
	data := envelope.Data.(map[string]any)
	if data["status"] != "healthy" {
		t.Fatalf("unexpected health status: %v", data["status"])
	}
	jobTypes := data["job_types"].([]any)
	if len(jobTypes) != 4 {
		t.Fatalf("expected 4 job types, got %d", len(jobTypes))
	}
}

func TestHistoryAndLatest(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	recordID, err := f.store.CreateRecord(ctx, "task-h", 2, 6)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	status := store.StatusWarning
	result := `{"max_temperature":65}`
	if _, err := f.store.UpdateRecord(ctx, recordID, store.RecordUpdate{Status: &status, ResultJSON: &result}); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/api/history?station_id=6", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history failed: %d", rec.Code)
	}
	data := envelope.Data.(map[string]any)
	if data["count"] != float64(1) {
		t.Fatalf("expected one record, got %v", data["count"])
	}
	first := data["records"].([]any)[0].(map[string]any)
	if first["status"] != "warning" {
		t.Fatalf("unexpected record status: %v", first["status"])
	}
	result2, ok := first["result"].(map[string]any)
	if !ok || result2["max_temperature"] != float64(65) {
		t.Fatalf("result json not decoded: %#v", first["result"])
	}

	rec, envelope = doJSON(t, f.server, http.MethodGet, "/api/latest?station_id=6", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest failed: %d", rec.Code)
	}
	latest := envelope.Data.(map[string]any)
	if latest["task_id"] != "task-h" {
		t.Fatalf("unexpected latest record: %#v", latest)
	}

	rec, _ = doJSON(t, f.server, http.MethodGet, "/api/latest?station_id=99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown station, got %d", rec.Code)
	}

	rec, _ = doJSON(t, f.server, http.MethodGet, "/api/latest", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing station_id, got %d", rec.Code)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	id, err := f.store.CreateRecord(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	status := store.StatusNormal
	if _, err := f.store.UpdateRecord(ctx, id, store.RecordUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/api/statistics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics failed: %d", rec.Code)
	}
	data := envelope.Data.(map[string]any)
	if data["total"] != float64(1) {
		t.Fatalf("unexpected total: %v", data["total"])
	}
	byStatus := data["by_status"].(map[string]any)
	if byStatus["normal"] != float64(1) {
		t.Fatalf("unexpected by_status: %#v", byStatus)
	}
}

func TestCartStatusRoundTrip(t *testing.T) {
	f := newFixture(t, false)

	rec, _ := doJSON(t, f.server, http.MethodGet, "/api/cart/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first report, got %d", rec.Code)
	}

	rec, _ = doJSON(t, f.server, http.MethodPost, "/api/cart/status", map[string]any{
		"online":          true,
		"current_station": 5,
		"mode":            "patrol",
		"battery_level":   64,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cart update failed: %d", rec.Code)
	}

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/api/cart/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cart read failed: %d", rec.Code)
	}
	data := envelope.Data.(map[string]any)
	if data["current_station"] != float64(5) || data["battery_level"] != float64(64) {
		t.Fatalf("unexpected cart status: %#v", data)
	}
}

func TestAlertsEndpoints(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	recordID, err := f.store.CreateRecord(ctx, "", 3, 2)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	alertID, err := f.store.AddAlert(ctx, recordID, "warning", "smoke_zone_a", "light smoke at station 2")
	if err != nil {
		t.Fatalf("AddAlert failed: %v", err)
	}

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/api/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts failed: %d", rec.Code)
	}
	data := envelope.Data.(map[string]any)
	if data["count"] != float64(1) {
		t.Fatalf("expected one alert, got %v", data["count"])
	}

	path := "/api/alerts/" + jsonNumber(alertID) + "/handled"
	rec, _ = doJSON(t, f.server, http.MethodPost, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark handled failed: %d", rec.Code)
	}

	rec, _ = doJSON(t, f.server, http.MethodPost, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated handling, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, false)

	rec, envelope := doJSON(t, f.server, http.MethodGet, "/api/process", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != api.CodeMethodNotAllowed {
		t.Fatalf("unexpected error payload: %#v", envelope.Error)
	}
}

func TestStopIsConcurrentSafe(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	addr := f.server.Addr()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.server.Stop()
		}()
	}
	cancel() // the ctx watcher calls Stop as well
	wg.Wait()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := http.Get("http://" + addr + "/health"); err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server still reachable after concurrent Stop")
}

func jsonNumber(v int64) string {
	return strings.TrimSpace(string(mustMarshal(v)))
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
