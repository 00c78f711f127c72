package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCallCompleted is emitted after a call's response is complete.
	EventTypeCallCompleted = "mcprelay.call.completed"
)

// Components that emit events.
const (
	ComponentAPI   = "api"
	ComponentProxy = "proxy"
	ComponentMCP   = "mcp"
)

// CallCompletedEvent is a transport-neutral event payload for a finished call.
type CallCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Call          CallMeta    `json:"call"`
}

// EventSource identifies which component handled the call.
type EventSource struct {
	Component string `json:"component"`
	Upstream  string `json:"upstream,omitempty"`
}

// CallMeta captures the lifecycle of one call.
type CallMeta struct {
	Method      string    `json:"method,omitempty"`
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	HTTPStatus  int       `json:"http_status"`

	// Chunks counts content chunks for API calls and SSE events for the proxy.
	Chunks   int    `json:"chunks"`
	Terminal string `json:"terminal,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewCallCompletedEvent stamps a new event with a fresh ID and the current
// time, and fills in the call duration.
func NewCallCompletedEvent(source EventSource, call CallMeta) *CallCompletedEvent {
	if call.CompletedAt.IsZero() {
		call.CompletedAt = time.Now()
	}
	call.DurationMs = call.CompletedAt.Sub(call.StartedAt).Milliseconds()

	return &CallCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCallCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Call:          call,
	}
}
