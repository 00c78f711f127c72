package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/sse"
)

const (
	eventEnd   = "end"
	eventError = "error"
)

// eventStream decodes an upstream event stream lazily: the body is read only
// as far as needed to produce the next chunk.
type eventStream struct {
	body    io.ReadCloser
	reader  *sse.Reader
	method  string
	logger  *slog.Logger
	pending []content.Chunk
	err     error
}

func newEventStream(body io.ReadCloser, method string, logger *slog.Logger) *eventStream {
	return &eventStream{
		body:   body,
		reader: sse.NewReader(body),
		method: method,
		logger: logger,
	}
}

// Next returns the next chunk. Once it returned an error (io.EOF included) it
// keeps returning the same error and the body has been closed.
func (s *eventStream) Next() (content.Chunk, error) {
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

// advance decodes one event into pending chunks or ends the stream.
func (s *eventStream) advance() {
	ev, err := s.reader.Next()
	switch {
	case err != nil:
		s.finish(fmt.Errorf("%w: reading upstream: %w", ErrMidStream, err))
		return
	case ev == nil:
		s.finish(io.EOF)
		return
	}

	switch ev.Type {
	case eventEnd:
		s.finish(io.EOF)
		return
	case eventError:
		s.finish(fmt.Errorf("%w: %s", ErrMidStream, errorMessage(ev.Data)))
		return
	}

	chunks, structured := sse.Normalize(*ev)
	if !structured {
		s.logger.Debug("upstream event is not structured, relaying raw data",
			"method", s.method,
			"bytes", len(ev.Data),
		)
	}
	s.pending = chunks
}

func (s *eventStream) finish(err error) {
	s.err = err
	s.pending = nil
	s.body.Close()
}

// Close abandons the stream and releases the upstream body.
func (s *eventStream) Close() error {
	if s.err != nil {
		return nil
	}
	s.finish(io.EOF)
	return nil
}

// errorMessage extracts a human message from the data of an upstream error
// event: {"message":"..."}, {"error":"..."} or {"error":{"message":"..."}},
// falling back to the raw data.
func errorMessage(data string) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}

		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}

		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}

	if data == "" {
		return "upstream reported an error"
	}
	return data
}
