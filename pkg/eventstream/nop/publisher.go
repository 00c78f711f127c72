// Package nop provides a Publisher that drops every event.
package nop

import (
	"context"

	"github.com/papercomputeco/mcprelay/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishCall validates input and otherwise does nothing.
func (p *Publisher) PublishCall(_ context.Context, event *eventstream.CallCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilCallEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
