package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/emitter"
	"github.com/papercomputeco/mcprelay/pkg/sse"
)

// frameStream decodes the frames written by the API's streaming endpoint.
type frameStream struct {
	body    io.ReadCloser
	reader  *sse.Reader
	pending []content.Chunk
	err     error
}

func (s *frameStream) Next() (content.Chunk, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return content.Chunk{}, s.err
		}
		s.advance()
	}

	c := s.pending[0]
	s.pending = s.pending[1:]
	return c, nil
}

func (s *frameStream) advance() {
	ev, err := s.reader.Next()
	switch {
	case err != nil:
		s.finish(fmt.Errorf("reading stream: %w", err))
		return
	case ev == nil:
		s.finish(ErrNoTerminal)
		return
	}

	switch ev.Type {
	case emitter.TerminalEnd:
		s.finish(io.EOF)
		return
	case emitter.TerminalError:
		var payload struct {
			Message string `json:"message"`
		}
		msg := ev.Data
		if json.Unmarshal([]byte(ev.Data), &payload) == nil && payload.Message != "" {
			msg = payload.Message
		}
		s.finish(&StreamError{Message: msg})
		return
	}

	s.pending, _ = sse.Normalize(*ev)
}

func (s *frameStream) finish(err error) {
	s.err = err
	s.pending = nil
	s.body.Close()
}

func (s *frameStream) Close() error {
	if s.err != nil {
		return nil
	}
	s.finish(io.EOF)
	return nil
}
