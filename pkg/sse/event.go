// Package sse decodes and encodes Server-Sent Events.
//
// Decoding is incremental: a Decoder accepts arbitrarily sized fragments of an
// event stream and yields complete events as soon as their terminating blank
// line has been seen, independent of where the fragment boundaries fall. A
// Reader drives a Decoder over an io.Reader and can tee the raw bytes to a
// downstream writer for verbatim relaying.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
