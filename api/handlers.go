package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/emitter"
	"github.com/papercomputeco/mcprelay/pkg/eventstream"
	"github.com/papercomputeco/mcprelay/pkg/metrics"
	"github.com/papercomputeco/mcprelay/pkg/registry"
	"github.com/papercomputeco/mcprelay/pkg/sse"
	"github.com/papercomputeco/mcprelay/pkg/upstream"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

// CallRequest is the body of a method call.
type CallRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Stream bool            `json:"stream,omitempty"`
}

// ErrorResponse is the body of every non-streaming error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MethodInfo describes one registered method.
type MethodInfo struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Streaming   bool           `json:"streaming"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// MethodsResponse is the body of GET /methods.
type MethodsResponse struct {
	Methods []MethodInfo `json:"methods"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleMethods lists the registry in name order.
func (s *Server) handleMethods(c *fiber.Ctx) error {
	entries := s.dispatcher.Registry().Entries()

	resp := MethodsResponse{Methods: make([]MethodInfo, 0, len(entries))}
	for _, e := range entries {
		resp.Methods = append(resp.Methods, MethodInfo{
			Name:        e.Name,
			Kind:        string(e.Kind),
			Description: e.Description,
			Streaming:   e.Streaming(),
			InputSchema: e.InputSchema,
		})
	}

	return c.JSON(resp)
}

func (s *Server) handleMethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodPost)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(ErrorResponse{Error: "method not allowed"})
}

// handleCall returns the handler for a call endpoint. On the streaming
// endpoint an Accept header asking for an event stream implies stream=true.
func (s *Server) handleCall(streamEndpoint bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CallRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			s.logger.Debug("invalid call body", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid JSON body"})
		}

		if streamEndpoint && !req.Stream {
			req.Stream = acceptsEventStream(c.Get(fiber.HeaderAccept))
		}

		if req.Stream {
			return s.handleStreamingCall(c, req)
		}
		return s.handleBufferedCall(c, req)
	}
}

func (s *Server) handleBufferedCall(c *fiber.Ctx, req CallRequest) error {
	start := time.Now()

	ctx, cancel := s.requestContext(c.UserContext())
	defer cancel()

	outcome, err := s.dispatcher.Dispatch(ctx, req.Method, req.Params, false)

	status := fiber.StatusOK
	if err != nil {
		status = StatusFor(err)
		s.logger.Warn("call failed",
			"method", req.Method,
			"status", status,
			"error", err,
		)
	}

	meta := eventstream.CallMeta{
		Method:     req.Method,
		Path:       c.Path(),
		StartedAt:  start,
		HTTPStatus: status,
	}
	if outcome != nil && outcome.Result != nil {
		meta.Chunks = len(outcome.Result.Content)
	}
	if err != nil {
		meta.Error = err.Error()
	}
	s.publish(meta)

	c.Status(status)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return emitter.WriteJSON(c, outcome, err)
}

// handleStreamingCall dispatches in streaming mode and emits the outcome as
// SSE. Dispatch errors are reported as an error frame on a 200 response.
func (s *Server) handleStreamingCall(c *fiber.Ctx, req CallRequest) error {
	start := time.Now()
	path := c.Path()

	// The stream outlives this handler: fasthttp recycles the request ctx once
	// the handler returns, so the call gets its own context.
	ctx, cancel := s.requestContext(context.Background())

	outcome, dispatchErr := s.dispatcher.Dispatch(ctx, req.Method, req.Params, true)
	if dispatchErr != nil {
		s.logger.Warn("streaming call failed",
			"method", req.Method,
			"error", dispatchErr,
		)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Status(fiber.StatusOK)

	// pw.Write blocks until fasthttp has consumed the previous frame. fasthttp
	// closes pr when the client is gone, which cancels ctx.
	pr, pw := sse.NewBodyPipe(cancel)
	go func() {
		defer cancel()

		sum, err := emitter.Stream(ctx, pw, outcome, dispatchErr)
		pw.CloseWithError(err)

		s.finishStream(req.Method, path, start, outcome, sum, err)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// finishStream logs and records a completed streaming call.
func (s *Server) finishStream(method, path string, start time.Time, outcome *dispatch.Outcome, sum emitter.Summary, err error) {
	result := sum.Err
	if err != nil {
		result = err
	}

	if outcome.Streaming() {
		s.config.Metrics.ObserveDispatch(outcome.Method, metrics.ModeStreaming, streamOutcome(sum, err), time.Since(start))
		s.config.Metrics.AddStreamChunks(outcome.Method, sum.Chunks)
	}

	switch {
	case err != nil:
		s.logger.Info("stream aborted",
			"method", method,
			"chunks", sum.Chunks,
			"error", err,
		)
	default:
		s.logger.Debug("stream completed",
			"method", method,
			"chunks", sum.Chunks,
			"terminal", sum.Terminal,
			"duration", time.Since(start),
		)
	}

	meta := eventstream.CallMeta{
		Method:     method,
		Path:       path,
		StartedAt:  start,
		Streaming:  true,
		HTTPStatus: fiber.StatusOK,
		Chunks:     sum.Chunks,
		Terminal:   sum.Terminal,
	}
	if result != nil {
		meta.Error = result.Error()
	}
	s.publish(meta)
}

func (s *Server) publish(meta eventstream.CallMeta) {
	if s.config.Pool == nil {
		return
	}

	s.config.Pool.Enqueue(worker.Job{
		Event: eventstream.NewCallCompletedEvent(eventstream.EventSource{
			Component: eventstream.ComponentAPI,
			Upstream:  s.config.Upstream,
		}, meta),
	})
}

func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(parent, s.config.RequestTimeout)
	}
	return context.WithCancel(parent)
}

// StatusFor maps a dispatch error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case registry.IsNotFound(err):
		return fiber.StatusNotFound
	case registry.IsInvalidParams(err):
		return fiber.StatusBadRequest
	case errors.Is(err, upstream.ErrUnreachable),
		errors.Is(err, upstream.ErrStreamMissing),
		errors.Is(err, upstream.ErrMidStream):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func streamOutcome(sum emitter.Summary, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case sum.Err != nil:
		return dispatch.Classify(sum.Err)
	default:
		return metrics.OutcomeOK
	}
}

var eventStreamMediaType = contenttype.NewMediaType("text/event-stream")

// acceptsEventStream reports whether an Accept header lists text/event-stream
// explicitly. Wildcards do not count.
func acceptsEventStream(accept string) bool {
	for part := range strings.SplitSeq(accept, ",") {
		mt := contenttype.NewMediaType(strings.TrimSpace(part))
		if mt.Type == eventStreamMediaType.Type && mt.Subtype == eventStreamMediaType.Subtype {
			return true
		}
	}
	return false
}
