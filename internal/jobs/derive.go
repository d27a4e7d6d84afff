package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"patrol/internal/store"
)

// Default temperature thresholds, overridable per submission.
const (
	DefaultWarningThreshold = 60.0
	DefaultDangerThreshold  = 80.0
)

// Outcome is the derived result of a finished inspection.
type Outcome struct {
	Status     store.Status
	Result     map[string]any
	Confidence *float64
}

// DeriveThresholdStatus maps a reading onto a status. Comparisons are
// inclusive: a value equal to a threshold escalates.
func DeriveThresholdStatus(value, warning, danger float64) store.Status {
	switch {
	case value >= danger:
		return store.StatusDanger
	case value >= warning:
		return store.StatusWarning
	default:
		return store.StatusNormal
	}
}

// BuildTemperatureOutcome derives the temperature result from submission
// params alone. max_temperature is required; warning_threshold and
// danger_threshold override the defaults; avg_temperature and
// ambient_temperature are carried through when present.
func BuildTemperatureOutcome(params map[string]any) (Outcome, error) {
	maxTemp, ok := toFloat(params["max_temperature"])
	if !ok {
		return Outcome{}, errors.New("params.max_temperature is required for temperature inspections")
	}

	warning := DefaultWarningThreshold
	if v, ok := toFloat(params["warning_threshold"]); ok {
		warning = v
	}
	danger := DefaultDangerThreshold
	if v, ok := toFloat(params["danger_threshold"]); ok {
		danger = v
	}

	status := DeriveThresholdStatus(maxTemp, warning, danger)
	result := map[string]any{
		"max_temperature":   maxTemp,
		"status":            string(status),
		"threshold_warning": warning,
		"threshold_danger":  danger,
	}
	if v, ok := toFloat(params["avg_temperature"]); ok {
		result["avg_temperature"] = v
	}
	if v, ok := toFloat(params["ambient_temperature"]); ok {
		result["ambient_temperature"] = v
	}

	confidence := 1.0
	return Outcome{Status: status, Result: result, Confidence: &confidence}, nil
}

// DerivePointerOutcome combines the model's gauge reading with optional
// caller thresholds. When params carry warning_threshold and
// danger_threshold the status is recomputed from the reading; otherwise
// the model's own status is taken, with unknown values treated as normal.
func DerivePointerOutcome(model map[string]any, params map[string]any) (Outcome, error) {
	if model == nil {
		return Outcome{}, errors.New("empty model result")
	}

	result := make(map[string]any, len(model))
	for k, v := range model {
		result[k] = v
	}

	value, hasValue := toFloat(model["value"])
	warning, hasWarning := toFloat(params["warning_threshold"])
	danger, hasDanger := toFloat(params["danger_threshold"])

	var status store.Status
	if hasValue && hasWarning && hasDanger {
		status = DeriveThresholdStatus(value, warning, danger)
		result["threshold_warning"] = warning
		result["threshold_danger"] = danger
	} else {
		status = normalizeStatus(model["status"])
	}
	result["status"] = string(status)

	return Outcome{Status: status, Result: result, Confidence: confidenceOf(model)}, nil
}

// DeriveSmokeOutcome maps the model's smoke observation onto a status.
// Heavy smoke is danger, any other visible smoke is warning, no smoke is
// normal.
func DeriveSmokeOutcome(model map[string]any) (Outcome, error) {
	if model == nil {
		return Outcome{}, errors.New("empty model result")
	}

	result := make(map[string]any, len(model))
	for k, v := range model {
		result[k] = v
	}

	hasSmoke, _ := model["has_smoke"].(bool)
	var status store.Status
	if hasSmoke {
		density, _ := model["density"].(string)
		if density == "heavy" {
			status = store.StatusDanger
		} else {
			status = store.StatusWarning
		}
	} else {
		status = store.StatusNormal
	}
	result["status"] = string(status)

	return Outcome{Status: status, Result: result, Confidence: confidenceOf(model)}, nil
}

// Derive produces the outcome for a finished inspection. model is ignored
// for job types that never call the classifier.
func Derive(jobType JobType, model map[string]any, params map[string]any) (Outcome, error) {
	switch jobType {
	case PointerReading:
		return DerivePointerOutcome(model, params)
	case Temperature:
		return BuildTemperatureOutcome(params)
	case SmokeZoneA, SmokeZoneB:
		return DeriveSmokeOutcome(model)
	default:
		return Outcome{}, fmt.Errorf("unknown job type %d", jobType)
	}
}

func normalizeStatus(value any) store.Status {
	raw, _ := value.(string)
	switch store.Status(raw) {
	case store.StatusWarning:
		return store.StatusWarning
	case store.StatusDanger:
		return store.StatusDanger
	default:
		return store.StatusNormal
	}
}

func confidenceOf(model map[string]any) *float64 {
	if v, ok := toFloat(model["confidence"]); ok {
		return &v
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
