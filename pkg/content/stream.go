package content

import (
	"io"
	"slices"
)

// Stream is a lazy, forward-only sequence of chunks. Each chunk is returned
// exactly once. Next returns io.EOF after the last chunk, and keeps returning
// it (or the first non-EOF error) on every later call. A Stream cannot be
// restarted: re-reading requires a fresh dispatch.
//
// Close abandons the stream and releases whatever backs it (typically an
// upstream response body). It is safe to call Close more than once and after
// the stream is exhausted.
type Stream interface {
	Next() (Chunk, error)
	Close() error
}

// sliceStream replays an already materialized result.
type sliceStream struct {
	chunks []Chunk
	pos    int
	closed bool
}

// FromResult returns a Stream over the chunks of r.
func FromResult(r Result) Stream {
	return &sliceStream{chunks: slices.Clone(r.Content)}
}

func (s *sliceStream) Next() (Chunk, error) {
	if s.closed || s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}

	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// Collect drains s into a Result and closes it. On error the chunks read so
// far are returned alongside the error.
func Collect(s Stream) (Result, error) {
	defer s.Close()

	res := Result{Content: []Chunk{}}
	for {
		c, err := s.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Content = append(res.Content, c)
	}
}
