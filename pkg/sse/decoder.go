package sse

import (
	"strings"
)

// Decoder turns a sequence of arbitrarily split text fragments into SSE events.
//
// The decoder holds only the unconsumed tail of the stream: everything after
// the last frame delimiter. The tail never contains a complete delimiter, so
// the events produced for fragments f1..fn are the same whether the fragments
// are fed one by one or concatenated into a single Feed call.
//
// A Decoder belongs to exactly one stream and is not safe for concurrent use.
type Decoder struct {
	buf []byte

	// scanned is the offset in buf up to which no delimiter can start.
	scanned int
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the decoder buffer and returns every event completed by it,
// in stream order. Blank frames are dropped.
func (d *Decoder) Feed(p []byte) []Event {
	d.buf = append(d.buf, p...)

	var events []Event
	start := 0
	for {
		end, next := boundary(d.buf, max(start, d.scanned))
		if end < 0 {
			break
		}

		if ev, ok := parseFrame(d.buf[start:end]); ok {
			events = append(events, ev)
		}
		start = next
	}

	d.buf = append(d.buf[:0], d.buf[start:]...)

	// A delimiter is at most three bytes long, so only the last two bytes of
	// the tail can start one that the next fragment completes.
	d.scanned = max(0, len(d.buf)-2)

	return events
}

// Flush is called once the stream has ended. A non-empty remainder that never
// saw a trailing delimiter is parsed as a final frame so an unterminated last
// message is not lost. The decoder is empty afterwards.
func (d *Decoder) Flush() []Event {
	rest := d.buf
	d.buf = nil
	d.scanned = 0

	if ev, ok := parseFrame(rest); ok {
		return []Event{ev}
	}
	return nil
}

// Buffered reports the number of bytes held back waiting for a delimiter.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// boundary finds the first frame delimiter (a line break followed by an empty
// line, "\n\n" or "\n\r\n") at or after from. It returns the end of the frame
// and the offset just past the delimiter, or -1, -1.
func boundary(buf []byte, from int) (int, int) {
	for i := from; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}

		switch {
		case i+1 < len(buf) && buf[i+1] == '\n':
			return i, i + 2
		case i+2 < len(buf) && buf[i+1] == '\r' && buf[i+2] == '\n':
			return i, i + 3
		}
	}
	return -1, -1
}

// parseFrame parses one raw frame. It reports false for frames that carry no
// data, event or id field (blank lines, comments, unknown fields only).
func parseFrame(raw []byte) (Event, bool) {
	var (
		ev      Event
		data    strings.Builder
		hasData bool
		seen    bool
	)

	for line := range strings.SplitSeq(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")

		// Lines starting with ':' are comments (often keep-alives).
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		// "field:value", the first space after the colon is stripped. A line
		// without a colon is a field name with an empty value.
		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
			seen = true
		case "event":
			ev.Type = value
			seen = true
		case "id":
			ev.ID = value
			seen = true
		default:
			// "retry" and unknown fields are ignored.
		}
	}

	ev.Data = data.String()
	return ev, seen
}
