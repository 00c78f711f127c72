// Package upstream relays method calls to a remote MCP-style service and
// exposes its answer as a lazily decoded content.Stream.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/logger"
	"github.com/papercomputeco/mcprelay/pkg/sse"
)

const (
	// DefaultTimeout bounds a whole upstream call, including reading a stream.
	DefaultTimeout = 5 * time.Minute

	// maxErrorBody caps how much of a failed response body ends up in errors.
	maxErrorBody = 512

	// maxDocumentBody caps non-streaming response bodies.
	maxDocumentBody = 8 << 20
)

var (
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	jsonMediaType        = contenttype.NewMediaType("application/json")
)

// Config configures a Relay.
type Config struct {
	// Endpoint is the upstream URL every call is POSTed to.
	Endpoint string

	// HTTPClient overrides the client used for upstream calls.
	HTTPClient *http.Client

	// Timeout is applied to the default client. Ignored when HTTPClient is set.
	Timeout time.Duration

	Logger *slog.Logger
}

// Request is the JSON body sent upstream.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Stream bool            `json:"stream"`
}

// Relay performs upstream calls. It holds no per-call state and is safe for
// concurrent use.
type Relay struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Relay.
func New(c Config) (*Relay, error) {
	if c.Endpoint == "" {
		return nil, errors.New("upstream endpoint is required")
	}

	client := c.HTTPClient
	if client == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Relay{
		endpoint:   c.Endpoint,
		httpClient: client,
		logger:     logger.OrNop(c.Logger),
	}, nil
}

// Endpoint returns the upstream URL.
func (r *Relay) Endpoint() string {
	return r.endpoint
}

// Call sends req upstream exactly once and returns the answer as a stream.
// Connection and status failures are returned synchronously; failures after
// the stream started surface from the stream's Next. The caller must Close
// the returned stream.
func (r *Relay) Call(ctx context.Context, req Request) (content.Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream, application/json")
	} else {
		httpReq.Header.Set("Accept", "application/json, text/event-stream")
	}

	r.logger.Debug("calling upstream",
		"method", req.Method,
		"endpoint", r.endpoint,
		"stream", req.Stream,
	)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		r.logger.Warn("upstream returned error status",
			"method", req.Method,
			"status", resp.StatusCode,
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnreachable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrStreamMissing
	}

	mediaType := contenttype.NewMediaType(resp.Header.Get("Content-Type"))
	if mediaType.Matches(eventStreamMediaType) {
		return newEventStream(resp.Body, req.Method, r.logger), nil
	}

	if !mediaType.Matches(jsonMediaType) {
		r.logger.Debug("upstream returned non-JSON document",
			"method", req.Method,
			"content_type", resp.Header.Get("Content-Type"),
		)
	}
	return readDocument(resp.Body)
}

// readDocument reads a single non-streaming response body and normalizes it
// like the data of one event.
func readDocument(body io.ReadCloser) (content.Stream, error) {
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrMidStream, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrStreamMissing
	}

	chunks, _ := sse.Normalize(sse.Event{Data: string(data)})
	return content.FromResult(content.Result{Content: chunks}), nil
}
