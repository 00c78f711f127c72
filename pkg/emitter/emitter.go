// Package emitter encodes dispatch outcomes for the wire: a single JSON
// document for buffered calls, or an SSE stream with explicit end and error
// framing for streaming calls.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/sse"
)

// Terminal frame kinds.
const (
	TerminalEnd   = "end"
	TerminalError = "error"
)

// Summary describes what Stream wrote.
type Summary struct {
	// Chunks is the number of data frames written.
	Chunks int

	// Terminal is TerminalEnd or TerminalError, or empty when the stream was
	// cut short before a terminal frame could be written.
	Terminal string

	// Err is the error reported in the error frame, if any.
	Err error
}

type resultDocument struct {
	Result content.Result `json:"result"`
}

type errorDocument struct {
	Error string `json:"error"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// WriteJSON writes the outcome as {"result":{...}}, or {"error":"..."} when err
// is set. A stream in the outcome is collected first; if it fails, the error
// document is written instead.
func WriteJSON(w io.Writer, outcome *dispatch.Outcome, err error) error {
	var doc any
	res, derr := document(outcome, err)
	if derr != nil {
		doc = errorDocument{Error: derr.Error()}
	} else {
		doc = res
	}

	data, merr := marshal(doc)
	if merr != nil {
		return merr
	}
	_, werr := w.Write(append(data, '\n'))
	return werr
}

// document returns the result document for outcome, or the error to report.
func document(outcome *dispatch.Outcome, err error) (resultDocument, error) {
	switch {
	case err != nil:
		return resultDocument{}, err
	case outcome == nil:
		return resultDocument{}, errors.New("empty outcome")
	case outcome.Streaming():
		res, cerr := content.Collect(outcome.Stream)
		if cerr != nil {
			return resultDocument{}, cerr
		}
		return resultDocument{Result: res}, nil
	case outcome.Result == nil:
		return resultDocument{Result: content.Result{Content: []content.Chunk{}}}, nil
	default:
		return resultDocument{Result: *outcome.Result}, nil
	}
}

// Stream writes the outcome as SSE: one data frame per chunk, pulled strictly
// in order, then exactly one terminal frame. A dispatch error or a failing
// pull ends the response with an error frame; otherwise it ends with an end
// frame.
//
// When ctx is done or a write fails, Stream stops pulling and closes the
// stream. An expired deadline is still reported with an error frame, since
// the client is connected and waiting. Cancellation and write failures
// return the error without a terminal frame.
func Stream(ctx context.Context, w io.Writer, outcome *dispatch.Outcome, dispatchErr error) (Summary, error) {
	var sum Summary

	if dispatchErr != nil {
		return sum, writeTerminalError(w, &sum, dispatchErr)
	}

	stream := streamOf(outcome)
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return sum, interrupted(w, &sum, err)
		}

		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return sum, interrupted(w, &sum, cerr)
			}
			return sum, writeTerminalError(w, &sum, err)
		}

		data, err := marshal(chunk)
		if err != nil {
			return sum, writeTerminalError(w, &sum, err)
		}
		if err := writeFrame(w, sse.Event{Data: string(data)}); err != nil {
			return sum, err
		}
		sum.Chunks++
	}

	if err := writeFrame(w, sse.Event{Type: TerminalEnd}); err != nil {
		return sum, err
	}
	sum.Terminal = TerminalEnd
	return sum, nil
}

func streamOf(outcome *dispatch.Outcome) content.Stream {
	switch {
	case outcome == nil:
		return content.FromResult(content.Result{})
	case outcome.Streaming():
		return outcome.Stream
	case outcome.Result != nil:
		return content.FromResult(*outcome.Result)
	default:
		return content.FromResult(content.Result{})
	}
}

// interrupted ends a stream whose context is done. A deadline gets an error
// frame; a canceled context returns as is.
func interrupted(w io.Writer, sum *Summary, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return writeTerminalError(w, sum, cause)
	}
	return cause
}

func writeTerminalError(w io.Writer, sum *Summary, cause error) error {
	data, err := marshal(errorPayload{Message: cause.Error()})
	if err != nil {
		return err
	}
	if err := writeFrame(w, sse.Event{Type: TerminalError, Data: string(data)}); err != nil {
		return err
	}
	sum.Terminal = TerminalError
	sum.Err = cause
	return nil
}

// writeFrame writes one frame and flushes w if it buffers.
func writeFrame(w io.Writer, ev sse.Event) error {
	if err := sse.WriteEvent(w, ev); err != nil {
		return fmt.Errorf("writing %s frame: %w", frameName(ev), err)
	}

	switch f := w.(type) {
	case interface{ Flush() error }:
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing %s frame: %w", frameName(ev), err)
		}
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}

func frameName(ev sse.Event) string {
	if ev.Type == "" {
		return "data"
	}
	return ev.Type
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
