package types

import "time"

// EventType identifies a discrete lifecycle event emitted by the runner.
type EventType string

const (
	EventStarted      EventType = "started"
	EventBarProcessed EventType = "bar_processed"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
)

// Event is a lifecycle notification. The engine publishes events on a
// channel bus and has no knowledge of how they are delivered.
type Event struct {
	Type  EventType `yaml:"type" json:"type"`
	RunID string    `yaml:"run_id" json:"run_id"`
	Time  time.Time `yaml:"time" json:"time"`

	// Processed and Total report bar progress for bar_processed events.
	Processed int `yaml:"processed" json:"processed"`
	Total     int `yaml:"total" json:"total"`

	// Error carries the failure message for failed events.
	Error string `yaml:"error" json:"error"`
}
