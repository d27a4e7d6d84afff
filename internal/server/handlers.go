package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"patrol/internal/api"
	"patrol/internal/dispatch"
	"patrol/internal/jobs"
	"patrol/internal/metrics"
	"patrol/internal/store"
)

const maxUploadBytes = 32 << 20

// handleProcess accepts a multipart inspection submission and responds as
// soon as the processing record exists.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, http.StatusRequestEntityTooLarge, api.CodeInvalidImage,
				fmt.Sprintf("upload exceeds the %d byte limit", maxUploadBytes))
			return
		}
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "invalid multipart form: "+err.Error())
		return
	}

	jobType, err := strconv.Atoi(strings.TrimSpace(r.FormValue("task_type")))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidTaskType, "task_type must be an integer")
		return
	}
	stationID, err := strconv.Atoi(strings.TrimSpace(r.FormValue("station_id")))
	if err != nil || stationID < 1 {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "station_id must be a positive integer")
		return
	}

	var params map[string]any
	if raw := strings.TrimSpace(r.FormValue("params")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidJSON, "params is not valid JSON: "+err.Error())
			return
		}
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidImage, "image file is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidImage, "read image: "+err.Error())
		return
	}

	receipt, err := s.dispatcher.Submit(r.Context(), dispatch.Submission{
		Image:     image,
		JobType:   jobType,
		StationID: stationID,
		Params:    params,
		TaskID:    strings.TrimSpace(r.FormValue("task_id")),
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrUnsupportedJobType):
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidTaskType, err.Error())
		case errors.Is(err, dispatch.ErrBadImage):
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidImage, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
		}
		return
	}

	s.writeSuccess(w, api.ReceiptView{
		TaskID:   receipt.TaskID,
		RecordID: receipt.RecordID,
		Status:   string(receipt.Status),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	depth, err := s.store.QueueDepth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}

	specs := jobs.All()
	views := make([]api.JobTypeView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, api.JobTypeView{
			Type:        int(spec.Type),
			Name:        spec.Name,
			Description: spec.Description,
			UsesModel:   spec.UsesModel,
		})
	}

	s.writeSuccess(w, api.HealthView{
		Status:     "healthy",
		JobTypes:   views,
		QueueDepth: depth,
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	limit := queryInt(r, "limit", 0)
	entries, err := s.store.PendingTasks(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}

	views := make([]api.TaskView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, taskView(entry))
	}
	s.writeSuccess(w, map[string]any{"tasks": views, "count": len(views)})
}

type addTaskRequest struct {
	StationID int            `json:"station_id" validate:"required,min=1"`
	TaskType  int            `json:"task_type" validate:"required,min=1,max=4"`
	Params    map[string]any `json:"params"`
	Priority  string         `json:"priority" validate:"omitempty,oneof=high medium low"`
	TaskID    string         `json:"task_id"`
}

func (s *Server) handleTaskAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidJSON, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, validationMessage(err))
		return
	}
	if _, err := jobs.Parse(req.TaskType); err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidTaskType, err.Error())
		return
	}

	params := ""
	if len(req.Params) > 0 {
		encoded, err := json.Marshal(req.Params)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidJSON, "params not encodable: "+err.Error())
			return
		}
		params = string(encoded)
	}

	taskID, err := s.store.Enqueue(r.Context(), strings.TrimSpace(req.TaskID), req.StationID, req.TaskType, params, store.Priority(req.Priority))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
		return
	}
	s.refreshQueueDepth(r.Context())
	s.notifyQueueChange("add", taskID)

	s.writeSuccess(w, map[string]any{"task_id": taskID, "message": "task queued"})
}

func (s *Server) handleTaskClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	removed, err := s.store.PurgeStale(r.Context(), s.purgeAge)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
		return
	}
	s.refreshQueueDepth(r.Context())

	s.writeSuccess(w, map[string]any{"removed": removed})
}

func (s *Server) handleTaskItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.methodNotAllowed(w)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, "task not found")
		return
	}

	removed, err := s.store.RemoveTask(r.Context(), taskID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, "task not found")
		return
	}
	s.refreshQueueDepth(r.Context())
	s.notifyQueueChange("delete", taskID)

	s.writeSuccess(w, map[string]any{"message": "task removed"})
}

func (s *Server) refreshQueueDepth(ctx context.Context) {
	if depth, err := s.store.QueueDepth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
}

func (s *Server) notifyQueueChange(action, taskID string) {
	go func() {
		if err := s.notifier.QueueChange(context.Background(), action, taskID); err != nil {
			metrics.NotificationsTotal.WithLabelValues("queue_change", "error").Inc()
			return
		}
		metrics.NotificationsTotal.WithLabelValues("queue_change", "ok").Inc()
	}()
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fe.Field()+" failed "+fe.Tag()+" validation")
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func taskView(entry *store.QueueEntry) api.TaskView {
	view := api.TaskView{
		TaskID:    entry.TaskID,
		StationID: entry.StationID,
		JobType:   entry.JobType,
		Priority:  string(entry.Priority),
		CreatedAt: entry.CreatedAt.Format(api.TimestampLayout),
	}
	if entry.Params != "" {
		var params any
		if err := json.Unmarshal([]byte(entry.Params), &params); err == nil {
			view.Params = params
		} else {
			view.Params = entry.Params
		}
	}
	return view
}
