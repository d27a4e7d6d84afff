package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"patrol/internal/imagestore"
	"patrol/internal/jobs"
	"patrol/internal/logging"
	"patrol/internal/metrics"
	"patrol/internal/notify"
	"patrol/internal/store"
)

// Sentinel errors surfaced to submission callers.
var (
	ErrUnsupportedJobType = errors.New("dispatch: unsupported job type")
	ErrBadImage           = errors.New("dispatch: image is not a decodable jpeg or png")
	ErrPoolStopped        = errors.New("dispatch: worker pool is shut down")
)

// Classifier is the subset of the model client the dispatcher needs.
type Classifier interface {
	Classify(ctx context.Context, prompt string, image []byte, mimeType string) (map[string]any, error)
}

// Submission is one inspection request.
type Submission struct {
	Image     []byte
	JobType   int
	StationID int
	Params    map[string]any
	// TaskID links the submission to a queued task; empty for direct
	// submissions.
	TaskID string
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	TaskID   string
	RecordID int64
	Status   store.Status
}

// Dispatcher validates submissions and hands accepted jobs to the pool.
type Dispatcher struct {
	store      *store.Store
	images     *imagestore.Store
	classifier Classifier
	notifier   notify.Service
	pool       *Pool
	logger     *slog.Logger
}

// New wires a dispatcher.
func New(st *store.Store, images *imagestore.Store, cl Classifier, notifier notify.Service, pool *Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      st,
		images:     images,
		classifier: cl,
		notifier:   notifier,
		pool:       pool,
		logger:     logging.WithComponent(logger, "dispatcher"),
	}
}

// Submit validates the submission, creates the processing record, and
// queues the job. It returns as soon as the record exists; classification
// happens on a pool worker.
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	jobLabel := strconv.Itoa(sub.JobType)

	jobType, err := jobs.Parse(sub.JobType)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(jobLabel, "rejected").Inc()
		return Receipt{}, fmt.Errorf("%w: %d", ErrUnsupportedJobType, sub.JobType)
	}

	format, mimeType, err := imagestore.Detect(sub.Image)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(jobLabel, "rejected").Inc()
		return Receipt{}, fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	taskID := sub.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	} else {
		d.consumeQueuedTask(ctx, taskID)
	}

	recordID, err := d.store.CreateRecord(ctx, taskID, int(jobType), sub.StationID)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(jobLabel, "rejected").Inc()
		return Receipt{}, fmt.Errorf("create record: %w", err)
	}

	job := d.newJob(jobType, recordID, taskID, sub, format, mimeType)
	if !d.pool.Submit(job) {
		metrics.SubmissionsTotal.WithLabelValues(jobLabel, "rejected").Inc()
		status := store.StatusFailed
		message := ErrPoolStopped.Error()
		if _, err := d.store.UpdateRecord(ctx, recordID, store.RecordUpdate{Status: &status, ErrorMessage: &message}); err != nil {
			d.logger.Error("shutdown failure persistence failed",
				logging.Int64("record_id", recordID), logging.Error(err))
		}
		return Receipt{}, ErrPoolStopped
	}

	metrics.SubmissionsTotal.WithLabelValues(jobLabel, "accepted").Inc()
	d.logger.Info("submission accepted",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int(logging.FieldJobType, int(jobType)),
		logging.Int(logging.FieldStation, sub.StationID),
		logging.Int64("record_id", recordID))

	return Receipt{TaskID: taskID, RecordID: recordID, Status: store.StatusProcessing}, nil
}

// consumeQueuedTask removes the matching queue entry, if any, and pushes a
// queue-change notification in the background. Both steps are best effort.
func (d *Dispatcher) consumeQueuedTask(ctx context.Context, taskID string) {
	removed, err := d.store.RemoveTask(ctx, taskID)
	if err != nil {
		d.logger.Warn("queued task removal failed",
			logging.String(logging.FieldTaskID, taskID), logging.Error(err))
		return
	}
	if !removed {
		return
	}
	if depth, err := d.store.QueueDepth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	go func() {
		if err := d.notifier.QueueChange(context.Background(), "delete", taskID); err != nil {
			metrics.NotificationsTotal.WithLabelValues("queue_change", "error").Inc()
			return
		}
		metrics.NotificationsTotal.WithLabelValues("queue_change", "ok").Inc()
	}()
}
