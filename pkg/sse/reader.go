package sse

import (
	"errors"
	"io"
)

// readSize is the size of each read from the source. Event size is not bounded
// by it: the Decoder buffers across reads.
const readSize = 32 * 1024

// Reader reads SSE events from a source io.Reader, optionally writing all raw
// bytes verbatim to a destination io.Writer as they are read.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │ (tee only)
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// Each call to Next performs at most as many reads as needed to complete one
// event, so a slow consumer directly slows down reads from the source.
type Reader struct {
	src  io.Reader
	dest io.Writer
	dec  *Decoder
	buf  []byte

	pending []Event
	eof     bool
	err     error
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		dec: NewDecoder(),
		buf: make([]byte, readSize),
	}
}

// NewTeeReader returns a Reader that parses SSE events from src and writes all
// raw bytes through to dest. The dest writer typically backs an io.Pipe
// connected to the downstream HTTP response.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	r := NewReader(src)
	r.dest = dest
	return r
}

// Next returns the next parsed SSE event. It blocks until a complete event is
// available. Next returns nil, nil when the source is exhausted; an event left
// unterminated at the end of the source is still returned.
//
// Events decoded before a read error are returned first; the error is returned
// once they are drained and on every call after that.
func (r *Reader) Next() (*Event, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if r.eof {
			return nil, nil
		}

		r.fill()
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return &ev, nil
}

// fill performs one read from the source and feeds it to the decoder.
func (r *Reader) fill() {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		if r.dest != nil {
			if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
				r.err = werr
				return
			}
		}
		r.pending = append(r.pending, r.dec.Feed(r.buf[:n])...)
	}

	switch {
	case errors.Is(err, io.EOF):
		r.eof = true
		r.pending = append(r.pending, r.dec.Flush()...)
	case err != nil:
		r.err = err
	}
}
