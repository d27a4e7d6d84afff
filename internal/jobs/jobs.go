package jobs

import "fmt"

// JobType identifies an inspection job.
type JobType int

const (
	PointerReading JobType = 1
	Temperature    JobType = 2
	SmokeZoneA     JobType = 3
	SmokeZoneB     JobType = 4
)

// Spec describes one registered job type.
type Spec struct {
	Type        JobType
	Name        string
	Description string
	// Prompt is sent to the vision-language model when UsesModel is set.
	Prompt    string
	UsesModel bool
}

const pointerPrompt = `Read the value shown on this analog pointer gauge.

Steps:
1. Identify the dial range (minimum to maximum value).
2. Identify the scale interval.
3. Locate the exact pointer position.
4. Compute the reading to two decimal places.

Respond with pure JSON and no other text:
{
    "value": reading,
    "unit": "unit (e.g. MPa)",
    "min_range": minimum scale value,
    "max_range": maximum scale value,
    "confidence": confidence between 0 and 1,
    "status": "normal/warning/danger"
}

If the pointer is unclear or the dial is damaged, use a low confidence
and set status to warning.`

const smokePrompt = `Determine whether smoke is visible in this monitored area.

Respond with pure JSON and no other text:
{
    "has_smoke": true or false,
    "density": "none/light/medium/heavy",
    "confidence": confidence between 0 and 1,
    "description": "short description of what is visible"
}`

var registry = map[JobType]Spec{
	PointerReading: {
		Type:        PointerReading,
		Name:        "pointer_reading",
		Description: "analog gauge reading",
		Prompt:      pointerPrompt,
		UsesModel:   true,
	},
	Temperature: {
		Type:        Temperature,
		Name:        "temperature",
		Description: "high temperature detection",
		UsesModel:   false,
	},
	SmokeZoneA: {
		Type:        SmokeZoneA,
		Name:        "smoke_zone_a",
		Description: "smoke detection in zone A",
		Prompt:      smokePrompt,
		UsesModel:   true,
	},
	SmokeZoneB: {
		Type:        SmokeZoneB,
		Name:        "smoke_zone_b",
		Description: "smoke detection in zone B",
		Prompt:      smokePrompt,
		UsesModel:   true,
	},
}

// Lookup returns the spec for a job type.
func Lookup(jobType JobType) (Spec, bool) {
	spec, ok := registry[jobType]
	return spec, ok
}

// Parse validates a raw job type value.
func Parse(value int) (JobType, error) {
	jobType := JobType(value)
	if _, ok := registry[jobType]; !ok {
		return 0, fmt.Errorf("unknown job type %d", value)
	}
	return jobType, nil
}

// All returns registered specs ordered by type.
func All() []Spec {
	specs := make([]Spec, 0, len(registry))
	for t := PointerReading; t <= SmokeZoneB; t++ {
		if spec, ok := registry[t]; ok {
			specs = append(specs, spec)
		}
	}
	return specs
}
