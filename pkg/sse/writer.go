package sse

import (
	"io"
	"strings"
)

// WriteEvent encodes ev as a single SSE frame and writes it to w in one call.
// Multi-line data is split into one "data:" line per line. An event without
// data is written with its "event:" (and "id:") lines only.
func WriteEvent(w io.Writer, ev Event) error {
	var b strings.Builder

	if ev.ID != "" {
		b.WriteString("id: ")
		b.WriteString(ev.ID)
		b.WriteByte('\n')
	}

	if ev.Type != "" {
		b.WriteString("event: ")
		b.WriteString(ev.Type)
		b.WriteByte('\n')
	}

	if ev.Data != "" {
		for line := range strings.SplitSeq(ev.Data, "\n") {
			b.WriteString("data: ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
