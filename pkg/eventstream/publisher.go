// Package eventstream defines the telemetry events emitted after each relayed
// call and the Publisher interface that ships them to a backend.
package eventstream

import "context"

// Publisher publishes call events to an event stream backend.
type Publisher interface {
	PublishCall(ctx context.Context, event *CallCompletedEvent) error
	Close() error
}
