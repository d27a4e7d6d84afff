package store

import "time"

// Status describes the lifecycle state of an inspection record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusNormal     Status = "normal"
	StatusWarning    Status = "warning"
	StatusDanger     Status = "danger"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status represents a finished inspection.
func (s Status) Terminal() bool {
	switch s {
	case StatusNormal, StatusWarning, StatusDanger, StatusFailed:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	return s == StatusProcessing || s.Terminal()
}

// Priority orders pending queue entries.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether the priority is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// QueueEntry is a pending inspection awaiting dispatch.
type QueueEntry struct {
	ID        int64
	TaskID    string
	StationID int
	JobType   int
	Params    string
	Priority  Priority
	CreatedAt time.Time
}

// ResultRecord tracks a single inspection from submission to completion.
type ResultRecord struct {
	ID                int64
	TaskID            string
	JobType           int
	StationID         int
	ImagePath         string
	ResultJSON        string
	Status            Status
	Confidence        *float64
	ProcessingSeconds *float64
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RecordUpdate carries a partial update for a result record. Nil fields
// leave the stored value untouched.
type RecordUpdate struct {
	Status            *Status
	ImagePath         *string
	ResultJSON        *string
	Confidence        *float64
	ProcessingSeconds *float64
	ErrorMessage      *string
}

// RecordFilter narrows record history queries. Zero values mean no
// constraint.
type RecordFilter struct {
	JobType   int
	StationID int
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// CartStatus is the latest snapshot reported by the patrol cart.
type CartStatus struct {
	Online         bool
	CurrentStation int
	Mode           string
	BatteryLevel   int
	LastActivity   string
	UpdatedAt      time.Time
}

// Alert is a persisted warning or danger escalation.
type Alert struct {
	ID        int64
	RecordID  int64
	Level     string
	AlertType string
	Message   string
	Handled   bool
	CreatedAt time.Time
}

// Statistics aggregates record outcomes over a trailing window.
type Statistics struct {
	Since                time.Time
	Total                int
	ByStatus             map[Status]int
	AvgConfidence        float64
	AvgProcessingSeconds float64
}

// DatabaseHealth reports diagnostic information about the database file.
type DatabaseHealth struct {
	DBPath         string
	DatabaseExists bool
	SizeBytes      int64
	QueueDepth     int
	RecordCount    int
}
