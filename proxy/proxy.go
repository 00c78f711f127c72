// Package proxy provides a transparent SSE passthrough proxy. Event streams
// are relayed byte for byte while being parsed for accounting, and every
// relayed stream ends with exactly one terminal frame.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mcprelay/pkg/emitter"
	"github.com/papercomputeco/mcprelay/pkg/eventstream"
	"github.com/papercomputeco/mcprelay/pkg/logger"
	"github.com/papercomputeco/mcprelay/pkg/sse"
	"github.com/papercomputeco/mcprelay/pkg/utils"
	"github.com/papercomputeco/mcprelay/pkg/worker"
	"github.com/papercomputeco/mcprelay/proxy/header"
)

// maxLoggedData caps event data included in debug logs.
const maxLoggedData = 120

var eventStreamMediaType = contenttype.NewMediaType("text/event-stream")

// ErrorResponse is the body returned when the upstream cannot be reached.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Proxy forwards every request to a single upstream. It is transparent:
// status, end-to-end headers and body bytes are passed through unchanged.
type Proxy struct {
	config        Config
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
func New(config Config, log *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}

	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	p := &Proxy{
		config:        config,
		logger:        logger.OrNop(log),
		httpClient:    client,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// App returns the underlying fiber app.
func (p *Proxy) App() *fiber.App {
	return p.server
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy server.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// handleProxy forwards the request upstream. Event stream responses are
// relayed through a pipe as they arrive; anything else is relayed whole.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	start := time.Now()
	path := c.Path()

	upstreamURL := p.config.UpstreamURL
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		reqBody = bytes.NewReader(bytes.Clone(body))
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming goroutine
	// still needs the upstream connection. cancel is owned by whichever path
	// finishes the response.
	ctx, cancel := context.WithCancel(context.Background())

	httpReq, err := http.NewRequestWithContext(ctx, c.Method(), upstreamURL, reqBody)
	if err != nil {
		cancel()
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", c.Method(),
		"path", path,
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		p.logger.Error("upstream request failed", "error", err)
		p.publish(eventstream.CallMeta{
			Path:       path,
			StartedAt:  start,
			HTTPStatus: fiber.StatusBadGateway,
			Error:      err.Error(),
		})
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "upstream request failed"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	mediaType := contenttype.NewMediaType(httpResp.Header.Get("Content-Type"))
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 && mediaType.Matches(eventStreamMediaType) {
		return p.handleStreamingResponse(c, httpResp, cancel, path, start)
	}

	defer cancel()
	return p.handleNonStreamingResponse(c, httpResp, path, start)
}

func (p *Proxy) handleNonStreamingResponse(c *fiber.Ctx, httpResp *http.Response, path string, start time.Time) error {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		p.publish(eventstream.CallMeta{
			Path:       path,
			StartedAt:  start,
			HTTPStatus: fiber.StatusBadGateway,
			Error:      err.Error(),
		})
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to read upstream response"})
	}

	p.logger.Debug("relayed upstream response",
		"status", httpResp.StatusCode,
		"bytes", len(respBody),
		"duration", time.Since(start),
	)
	p.publish(eventstream.CallMeta{
		Path:       path,
		StartedAt:  start,
		HTTPStatus: httpResp.StatusCode,
	})

	return c.Send(respBody)
}

// handleStreamingResponse relays an upstream event stream.
//
// io.Pipe + SetBodyStream is used instead of SetBodyStreamWriter: with
// io.Pipe, pw.Write blocks until fasthttp's chunked body writer has consumed
// the data and flushed it to the socket, so every event reaches the client as
// soon as the upstream sends it and a slow client slows the upstream read.
//
// fasthttp closes the pipe reader when the client goes away, which cancels
// the upstream request and unblocks a pending body read.
func (p *Proxy) handleStreamingResponse(c *fiber.Ctx, httpResp *http.Response, cancel context.CancelFunc, path string, start time.Time) error {
	p.headerHandler.SetEventStreamHeaders(c)

	pr, pw := sse.NewBodyPipe(cancel)
	go func() {
		defer cancel()
		p.relayEvents(httpResp, pw, path, start)
	}()

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayEvents copies the upstream body verbatim into pw while counting
// events, then appends a terminal frame unless the upstream already sent one.
func (p *Proxy) relayEvents(httpResp *http.Response, pw *io.PipeWriter, path string, start time.Time) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()

	var (
		events   int
		last     string
		terminal string
		relayErr error
	)

	tr := sse.NewTeeReader(httpResp.Body, pw)
	for {
		ev, err := tr.Next()
		if err != nil {
			relayErr = err
			break
		}
		if ev == nil {
			break
		}

		events++
		last = ev.Type
		p.logger.Debug("relayed event",
			"type", ev.Type,
			"data", utils.Truncate(ev.Data, maxLoggedData),
		)
	}

	switch {
	case errors.Is(relayErr, io.ErrClosedPipe), errors.Is(relayErr, context.Canceled):
		// The client went away; nothing more can be written.
		p.logger.Info("client disconnected", "path", path, "events", events)
	case relayErr != nil:
		p.logger.Error("error reading SSE stream", "error", relayErr)
		terminal, relayErr = writeTerminal(pw, sse.Event{Type: emitter.TerminalError, Data: errorData(relayErr)}, relayErr)
	case last == emitter.TerminalEnd || last == emitter.TerminalError:
		terminal = last
	default:
		terminal, relayErr = writeTerminal(pw, sse.Event{Type: emitter.TerminalEnd}, nil)
	}
	pw.Close()

	p.config.Metrics.AddProxyEvents(events)

	meta := eventstream.CallMeta{
		Path:       path,
		StartedAt:  start,
		Streaming:  true,
		HTTPStatus: httpResp.StatusCode,
		Chunks:     events,
		Terminal:   terminal,
	}
	if relayErr != nil {
		meta.Error = relayErr.Error()
	}
	p.publish(meta)

	p.logger.Debug("stream relayed",
		"path", path,
		"events", events,
		"terminal", terminal,
		"duration", time.Since(start),
	)
}

// writeTerminal writes the closing frame. It returns the frame type and
// cause, or no type and the write error when the client is already gone.
func writeTerminal(w io.Writer, ev sse.Event, cause error) (string, error) {
	if err := sse.WriteEvent(w, ev); err != nil {
		return "", err
	}
	return ev.Type, cause
}

func errorData(err error) string {
	data, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: err.Error()})
	return string(data)
}

func (p *Proxy) publish(meta eventstream.CallMeta) {
	if p.config.Pool == nil {
		return
	}

	p.config.Pool.Enqueue(worker.Job{
		Event: eventstream.NewCallCompletedEvent(eventstream.EventSource{
			Component: eventstream.ComponentProxy,
			Upstream:  p.config.UpstreamURL,
		}, meta),
	})
}
