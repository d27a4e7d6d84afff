// Package api defines the JSON response envelope and view types shared by
// the HTTP server and the CLI client.
package api

import "time"

// TimestampLayout is the wall-clock format carried in every envelope.
const TimestampLayout = "2006-01-02 15:04:05"

// Error codes returned in the envelope.
const (
	CodeInvalidTaskType   = "INVALID_TASK_TYPE"
	CodeInvalidImage      = "INVALID_IMAGE"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope every endpoint returns.
type Response struct {
	Status    string     `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// Success builds a success envelope around data.
func Success(data any) Response {
	return Response{
		Status:    "success",
		Data:      data,
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// Failure builds an error envelope.
func Failure(code, message string) Response {
	return Response{
		Status:    "error",
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// ReceiptView is returned by the submission fast path.
type ReceiptView struct {
	TaskID   string `json:"task_id"`
	RecordID int64  `json:"record_id"`
	Status   string `json:"status"`
}

// TaskView is a pending queue entry.
type TaskView struct {
	TaskID    string `json:"task_id"`
	StationID int    `json:"station_id"`
	JobType   int    `json:"task_type"`
	Params    any    `json:"params,omitempty"`
	Priority  string `json:"priority"`
	CreatedAt string `json:"created_at"`
}

// RecordView is a stored inspection result.
type RecordView struct {
	ID                int64    `json:"id"`
	TaskID            string   `json:"task_id"`
	JobType           int      `json:"task_type"`
	StationID         int      `json:"station_id"`
	Status            string   `json:"status"`
	Result            any      `json:"result,omitempty"`
	ImagePath         string   `json:"image_path,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	ProcessingSeconds *float64 `json:"processing_time,omitempty"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// JobTypeView describes a registered job type in health output.
type JobTypeView struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UsesModel   bool   `json:"uses_model"`
}

// HealthView is the /health payload.
type HealthView struct {
	Status     string        `json:"status"`
	JobTypes   []JobTypeView `json:"job_types"`
	QueueDepth int           `json:"queue_depth"`
}

// StatisticsView aggregates record outcomes.
type StatisticsView struct {
	Since                string         `json:"since"`
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"by_status"`
	AvgConfidence        float64        `json:"avg_confidence"`
	AvgProcessingSeconds float64        `json:"avg_processing_time"`
}

// CartStatusView is the cart snapshot payload.
type CartStatusView struct {
	Online         bool   `json:"online"`
	CurrentStation int    `json:"current_station"`
	Mode           string `json:"mode,omitempty"`
	BatteryLevel   int    `json:"battery_level"`
	LastActivity   string `json:"last_activity,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// AlertView is an open alert entry.
type AlertView struct {
	ID        int64  `json:"id"`
	RecordID  int64  `json:"record_id"`
	Level     string `json:"level"`
	AlertType string `json:"alert_type"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}
