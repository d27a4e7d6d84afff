package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"patrol/internal/api"
	"patrol/internal/store"
)

const defaultHistoryLimit = 50

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	filter := store.RecordFilter{
		JobType:   queryInt(r, "task_type", 0),
		StationID: queryInt(r, "station_id", 0),
		Limit:     queryInt(r, "limit", defaultHistoryLimit),
		Offset:    queryInt(r, "offset", 0),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("start_date")); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "start_date must be YYYY-MM-DD")
			return
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end_date")); raw != "" {
		to, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "end_date must be YYYY-MM-DD")
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	records, err := s.store.Records(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}

	views := make([]api.RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, recordView(record))
	}
	s.writeSuccess(w, map[string]any{"records": views, "count": len(views)})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	stationID := queryInt(r, "station_id", 0)
	if stationID < 1 {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "station_id is required")
		return
	}
	var jobType *int
	if v := queryInt(r, "task_type", 0); v != 0 {
		jobType = &v
	}

	record, err := s.store.LatestForStation(r.Context(), stationID, jobType)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, "no records for station")
		return
	}
	s.writeSuccess(w, recordView(record))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	days := queryInt(r, "days", 7)
	stats, err := s.store.Statistics(r.Context(), days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	s.writeSuccess(w, api.StatisticsView{
		Since:                stats.Since.Format(api.TimestampLayout),
		Total:                stats.Total,
		ByStatus:             byStatus,
		AvgConfidence:        stats.AvgConfidence,
		AvgProcessingSeconds: stats.AvgProcessingSeconds,
	})
}

func (s *Server) handleCartStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status, err := s.store.CartStatus(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
			return
		}
		if status == nil {
			s.writeError(w, http.StatusNotFound, api.CodeNotFound, "cart has not reported yet")
			return
		}
		s.writeSuccess(w, api.CartStatusView{
			Online:         status.Online,
			CurrentStation: status.CurrentStation,
			Mode:           status.Mode,
			BatteryLevel:   status.BatteryLevel,
			LastActivity:   status.LastActivity,
			UpdatedAt:      status.UpdatedAt.Format(api.TimestampLayout),
		})

	case http.MethodPost:
		var view api.CartStatusView
		if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
			s.writeError(w, http.StatusBadRequest, api.CodeInvalidJSON, "invalid request body: "+err.Error())
			return
		}
		err := s.store.UpdateCartStatus(r.Context(), store.CartStatus{
			Online:         view.Online,
			CurrentStation: view.CurrentStation,
			Mode:           view.Mode,
			BatteryLevel:   view.BatteryLevel,
			LastActivity:   view.LastActivity,
		})
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
			return
		}
		s.writeSuccess(w, map[string]any{"message": "cart status updated"})

	default:
		s.methodNotAllowed(w)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	alerts, err := s.store.UnhandledAlerts(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodeInternalError, err.Error())
		return
	}

	views := make([]api.AlertView, 0, len(alerts))
	for _, alert := range alerts {
		views = append(views, api.AlertView{
			ID:        alert.ID,
			RecordID:  alert.RecordID,
			Level:     alert.Level,
			AlertType: alert.AlertType,
			Message:   alert.Message,
			CreatedAt: alert.CreatedAt.Format(api.TimestampLayout),
		})
	}
	s.writeSuccess(w, map[string]any{"alerts": views, "count": len(views)})
}

func (s *Server) handleAlertItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	idStr, ok := strings.CutSuffix(rest, "/handled")
	if !ok || idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, "alert not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "invalid alert id")
		return
	}

	handled, err := s.store.MarkAlertHandled(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, api.CodePersistenceFailed, err.Error())
		return
	}
	if !handled {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, "alert not found or already handled")
		return
	}
	s.writeSuccess(w, map[string]any{"message": "alert handled"})
}

func recordView(record *store.ResultRecord) api.RecordView {
	view := api.RecordView{
		ID:                record.ID,
		TaskID:            record.TaskID,
		JobType:           record.JobType,
		StationID:         record.StationID,
		Status:            string(record.Status),
		ImagePath:         record.ImagePath,
		Confidence:        record.Confidence,
		ProcessingSeconds: record.ProcessingSeconds,
		ErrorMessage:      record.ErrorMessage,
		CreatedAt:         record.CreatedAt.Format(api.TimestampLayout),
		UpdatedAt:         record.UpdatedAt.Format(api.TimestampLayout),
	}
	if record.ResultJSON != "" {
		var result any
		if err := json.Unmarshal([]byte(record.ResultJSON), &result); err == nil {
			view.Result = result
		} else {
			view.Result = record.ResultJSON
		}
	}
	return view
}
