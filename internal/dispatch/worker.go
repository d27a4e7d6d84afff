package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"patrol/internal/api"
	"patrol/internal/jobs"
	"patrol/internal/logging"
	"patrol/internal/metrics"
	"patrol/internal/notify"
	"patrol/internal/store"
)

func (d *Dispatcher) newJob(jobType jobs.JobType, recordID int64, taskID string, sub Submission, format, mimeType string) Job {
	return func(ctx context.Context) {
		started := time.Now()

		outcome, imagePath, err := d.process(ctx, jobType, sub, format, mimeType)
		elapsed := time.Since(started).Seconds()

		jobLabel := strconv.Itoa(int(jobType))
		metrics.ProcessingSeconds.WithLabelValues(jobLabel).Observe(elapsed)

		if err != nil {
			metrics.JobsProcessedTotal.WithLabelValues(jobLabel, string(store.StatusFailed)).Inc()
			d.finishFailed(ctx, recordID, taskID, jobType, sub.StationID, imagePath, elapsed, err)
			return
		}

		metrics.JobsProcessedTotal.WithLabelValues(jobLabel, string(outcome.Status)).Inc()
		d.finish(ctx, recordID, taskID, jobType, sub.StationID, imagePath, elapsed, outcome)
	}
}

// process runs the heavy part of one inspection: persist the image, call
// the model when the job type requires it, and derive the outcome.
func (d *Dispatcher) process(ctx context.Context, jobType jobs.JobType, sub Submission, format, mimeType string) (jobs.Outcome, string, error) {
	spec, _ := jobs.Lookup(jobType)

	imagePath, err := d.images.Save(sub.Image, int(jobType), sub.StationID, format)
	if err != nil {
		return jobs.Outcome{}, "", err
	}

	var model map[string]any
	if spec.UsesModel {
		model, err = d.classifier.Classify(ctx, spec.Prompt, sub.Image, mimeType)
		if err != nil {
			return jobs.Outcome{}, imagePath, err
		}
	}

	outcome, err := jobs.Derive(jobType, model, sub.Params)
	if err != nil {
		return jobs.Outcome{}, imagePath, err
	}
	return outcome, imagePath, nil
}

func (d *Dispatcher) finish(ctx context.Context, recordID int64, taskID string, jobType jobs.JobType, stationID int, imagePath string, elapsed float64, outcome jobs.Outcome) {
	resultJSON := ""
	if outcome.Result != nil {
		if encoded, err := json.Marshal(outcome.Result); err == nil {
			resultJSON = string(encoded)
		}
	}

	status := outcome.Status
	update := store.RecordUpdate{
		Status:            &status,
		ImagePath:         &imagePath,
		ResultJSON:        &resultJSON,
		ProcessingSeconds: &elapsed,
		Confidence:        outcome.Confidence,
	}
	existed, err := d.store.UpdateRecord(ctx, recordID, update)
	if err != nil || !existed {
		d.logger.Error("result persistence failed",
			logging.Int64("record_id", recordID),
			logging.Bool("existed", existed),
			logging.Error(err))
		return
	}

	d.logger.Info("inspection finished",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int(logging.FieldJobType, int(jobType)),
		logging.Int(logging.FieldStation, stationID),
		logging.String(logging.FieldStatus, string(status)),
		logging.Float64("seconds", elapsed))

	if status == store.StatusWarning || status == store.StatusDanger {
		message := fmt.Sprintf("station %d %s inspection reported %s", stationID, jobTypeName(jobType), status)
		if _, err := d.store.AddAlert(ctx, recordID, string(status), jobTypeName(jobType), message); err != nil {
			d.logger.Warn("alert persistence failed",
				logging.Int64("record_id", recordID), logging.Error(err))
		}
	}

	d.pushResult(notify.ResultEvent{
		TaskID:            taskID,
		JobType:           int(jobType),
		StationID:         stationID,
		Status:            string(status),
		Result:            outcome.Result,
		ImagePath:         imagePath,
		ProcessingSeconds: elapsed,
	})
}

func (d *Dispatcher) finishFailed(ctx context.Context, recordID int64, taskID string, jobType jobs.JobType, stationID int, imagePath string, elapsed float64, cause error) {
	d.logger.Error("inspection failed",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int(logging.FieldJobType, int(jobType)),
		logging.Int(logging.FieldStation, stationID),
		logging.Error(cause))

	status := store.StatusFailed
	message := cause.Error()
	update := store.RecordUpdate{
		Status:            &status,
		ErrorMessage:      &message,
		ProcessingSeconds: &elapsed,
	}
	if imagePath != "" {
		update.ImagePath = &imagePath
	}
	if existed, err := d.store.UpdateRecord(ctx, recordID, update); err != nil || !existed {
		d.logger.Error("failure persistence failed",
			logging.Int64("record_id", recordID),
			logging.Bool("existed", existed),
			logging.Error(err))
	}

	d.pushResult(notify.ResultEvent{
		TaskID:            taskID,
		JobType:           int(jobType),
		StationID:         stationID,
		Status:            string(store.StatusFailed),
		Error:             message,
		ImagePath:         imagePath,
		ProcessingSeconds: elapsed,
	})
}

func (d *Dispatcher) pushResult(event notify.ResultEvent) {
	event.Timestamp = time.Now().Format(api.TimestampLayout)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.notifier.TaskResult(ctx, event); err != nil {
		metrics.NotificationsTotal.WithLabelValues("task_result", "error").Inc()
		return
	}
	metrics.NotificationsTotal.WithLabelValues("task_result", "ok").Inc()
}

func jobTypeName(jobType jobs.JobType) string {
	if spec, ok := jobs.Lookup(jobType); ok {
		return spec.Name
	}
	return strconv.Itoa(int(jobType))
}
