package trace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of trace event
type EventType string

const (
	// EventTypeRunStart indicates a suite run started
	EventTypeRunStart EventType = "run_start"

	// EventTypeRunComplete indicates a suite run completed
	EventTypeRunComplete EventType = "run_complete"

	// EventTypeSampleStart indicates a sample's pipeline started
	EventTypeSampleStart EventType = "sample_start"

	// EventTypeSampleComplete indicates a sample's pipeline completed
	EventTypeSampleComplete EventType = "sample_complete"

	// EventTypeStepStart indicates a step started
	EventTypeStepStart EventType = "step_start"

	// EventTypeStepComplete indicates a step completed
	EventTypeStepComplete EventType = "step_complete"

	// EventTypeStepFail indicates a step failed
	EventTypeStepFail EventType = "step_fail"

	// EventTypeTaskProgress carries a scheduler progress snapshot
	EventTypeTaskProgress EventType = "task_progress"

	// EventTypeError indicates an error occurred
	EventTypeError EventType = "error"

	// EventTypeInfo indicates informational event
	EventTypeInfo EventType = "info"
)

// Event represents a single trace event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the event type
	Type EventType `json:"type"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the suite run this event belongs to
	RunID string `json:"run_id"`

	// SampleID identifies the sample (if applicable)
	SampleID string `json:"sample_id,omitempty"`

	// StepID identifies the step (if applicable)
	StepID string `json:"step_id,omitempty"`

	// Message is a human-readable description
	Message string `json:"message"`

	// Level indicates severity (info, error)
	Level string `json:"level"`

	// Data contains event-specific structured data
	Data map[string]any `json:"data,omitempty"`

	// Duration tracks how long an operation took (for start/complete pairs)
	Duration *time.Duration `json:"duration,omitempty"`

	// Error contains error details if applicable
	Error string `json:"error,omitempty"`
}

// ToJSON converts the event to a single JSON line
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// NewEvent creates a new trace event with common fields populated
func NewEvent(eventType EventType, runID string, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Message:   message,
		Level:     inferLevel(eventType),
	}
}

// WithSampleID sets the sample ID
func (e *Event) WithSampleID(sampleID string) *Event {
	e.SampleID = sampleID
	return e
}

// WithStepID sets the step ID
func (e *Event) WithStepID(stepID string) *Event {
	e.StepID = stepID
	return e
}

// WithData adds data to the event
func (e *Event) WithData(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithError sets the error field
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Level = "error"
	}
	return e
}

// WithDuration sets the duration
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.Duration = &duration
	return e
}

// inferLevel infers the log level from event type
func inferLevel(eventType EventType) string {
	switch eventType {
	case EventTypeError, EventTypeStepFail:
		return "error"
	default:
		return "info"
	}
}
