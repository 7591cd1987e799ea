// Package events defines the structured lifecycle event sink consumed by the
// serving core. The excluded metrics/logging layer plugs in here.
package events

import (
	"log"
	"time"
)

// Lifecycle event names emitted by the core
const (
	ModelRegistered   = "model:registered"
	ModelUnregistered = "model:unregistered"
	TrainingStarted   = "training:started"
	TrainingProgress  = "training:progress"
	TrainingCompleted = "training:completed"
	TrainingFailed    = "training:failed"
	PipelineCompleted = "pipeline:completed"
	PipelineFailed    = "pipeline:failed"
	PredictionOK      = "prediction:complete"
	PredictionError   = "prediction:error"
)

// Event is one structured lifecycle event
type Event struct {
	Name   string                 `json:"name"`
	At     time.Time              `json:"at"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Sink receives lifecycle events. Implementations must be safe for
// concurrent use; Emit must not block callers for long.
type Sink interface {
	Emit(event Event)
}

// LogSink writes events through the standard logger
type LogSink struct{}

// Emit logs the event
func (LogSink) Emit(event Event) {
	log.Printf("event %s %v", event.Name, event.Fields)
}

// NopSink discards all events
type NopSink struct{}

// Emit discards the event
func (NopSink) Emit(Event) {}

// New creates an event with the current timestamp
func New(name string, fields map[string]interface{}) Event {
	return Event{Name: name, At: time.Now().UTC(), Fields: fields}
}
