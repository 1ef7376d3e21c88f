// Package trace records what happened during pipeline runs so that a run
// can be inspected after the fact.
package trace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of trace event
type EventType string

const (
	// EventTypeRunStart indicates a pipeline run started
	EventTypeRunStart EventType = "run_start"

	// EventTypeRunComplete indicates every command of a run succeeded
	EventTypeRunComplete EventType = "run_complete"

	// EventTypeRunFail indicates a run stopped at a failed command
	EventTypeRunFail EventType = "run_fail"

	// EventTypeCommandStart indicates a command was sent to the executor
	EventTypeCommandStart EventType = "command_start"

	// EventTypeCommandComplete indicates a command succeeded
	EventTypeCommandComplete EventType = "command_complete"

	// EventTypeCommandFail indicates a command failed
	EventTypeCommandFail EventType = "command_fail"

	// EventTypeProduct indicates a product was published
	EventTypeProduct EventType = "product"

	// EventTypeProductFail indicates a product could not be extracted
	EventTypeProductFail EventType = "product_fail"
)

// Event represents a single trace event
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	RunID     string            `json:"run_id"`
	Command   string            `json:"command,omitempty"`
	Message   string            `json:"message,omitempty"`
	Level     string            `json:"level"`
	Data      map[string]string `json:"data,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// NewEvent creates an event for run runID
func NewEvent(eventType EventType, runID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Level:     inferLevel(eventType),
	}
}

// WithCommand sets the command name
func (e *Event) WithCommand(name string) *Event {
	e.Command = name
	return e
}

// WithMessage sets the message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithData adds a key/value pair
func (e *Event) WithData(key, value string) *Event {
	if e.Data == nil {
		e.Data = make(map[string]string)
	}
	e.Data[key] = value
	return e
}

// WithError sets the error field and raises the level
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Level = "error"
	}
	return e
}

// WithDuration sets the duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// MarshalLine renders the event as a single JSON line
func (e *Event) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func inferLevel(eventType EventType) string {
	switch eventType {
	case EventTypeRunFail, EventTypeCommandFail:
		return "error"
	case EventTypeProductFail:
		return "warning"
	default:
		return "info"
	}
}
