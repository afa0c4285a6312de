package domain

import "encoding/json"

// StepName identifies one stage of the presentation-generation pipeline.
type StepName string

const (
	StepResearch StepName = "research"
	StepSlides   StepName = "slides"
	StepImages   StepName = "images"
	StepCompiled StepName = "compiled"
	StepPPTX     StepName = "pptx"
)

// StepOrder is the fixed pipeline order. Index positions are stable and shared
// with the server; navigation and rendering address steps by these indexes.
var StepOrder = []StepName{StepResearch, StepSlides, StepImages, StepCompiled, StepPPTX}

// StepIndex returns the pipeline position of a step name, or -1 when the name
// is not part of the pipeline.
func StepIndex(name StepName) int {
	for i, n := range StepOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// KnownStep reports whether name belongs to the pipeline.
func KnownStep(name StepName) bool {
	return StepIndex(name) >= 0
}

// StepStatus enumerates step lifecycle states.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Terminal reports whether a step in this status has finished running.
// Failed steps only leave this state through an explicit rerun.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Step is one named stage of a presentation's pipeline as reported by the
// server. Result is the step's payload when present; its shape depends on the
// step and is passed through opaquely.
type Step struct {
	Name   StepName        `json:"name"`
	Status StepStatus      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewSteps returns a fresh, ordered step collection with every step pending.
func NewSteps() []Step {
	steps := make([]Step, 0, len(StepOrder))
	for _, name := range StepOrder {
		steps = append(steps, Step{Name: name, Status: StepPending})
	}
	return steps
}

// HasStepStatus reports whether any step in the collection has the given
// status.
func HasStepStatus(steps []Step, status StepStatus) bool {
	for _, s := range steps {
		if s.Status == status {
			return true
		}
	}
	return false
}
