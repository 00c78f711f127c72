// Package client talks to a running mcprelay API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnormous/contenttype"

	"github.com/papercomputeco/mcprelay/api"
	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/sse"
)

const (
	callPath    = "/api/mcp"
	streamPath  = "/api/mcp-stream"
	methodsPath = "/methods"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

var eventStreamMediaType = contenttype.NewMediaType("text/event-stream")

// ErrNoTerminal is returned from a stream that ended without an end or error
// frame.
var ErrNoTerminal = errors.New("stream ended without a terminal frame")

// APIError is a non-2xx answer from the API server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed (HTTP %d): %s", e.Status, e.Message)
}

// StreamError is an error frame received on a streaming call.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Client is an HTTP client for the method API.
type Client struct {
	target     *url.URL
	httpClient *http.Client
	// streamClient has no overall timeout; streams are bounded by ctx.
	streamClient *http.Client
}

// New returns a Client for the API server at target, e.g. "http://localhost:8081".
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", target)
	}

	return &Client{
		target:       u,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.target
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

// Methods lists the methods registered on the server.
func (c *Client) Methods(ctx context.Context) ([]api.MethodInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(methodsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("creating methods request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mcprelay API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out api.MethodsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse methods response: %w", err)
	}
	return out.Methods, nil
}

// Call performs a buffered call and returns the complete result.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (content.Result, error) {
	resp, err := c.post(ctx, c.httpClient, callPath, api.CallRequest{Method: method, Params: params}, "application/json")
	if err != nil {
		return content.Result{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Result *content.Result `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return content.Result{}, fmt.Errorf("failed to parse call response: %w", err)
	}
	if out.Error != "" {
		return content.Result{}, &StreamError{Message: out.Error}
	}
	if out.Result == nil {
		return content.Result{Content: []content.Chunk{}}, nil
	}
	return *out.Result, nil
}

// Stream performs a streaming call. Chunks are decoded as frames arrive. The
// caller must Close the returned stream.
func (c *Client) Stream(ctx context.Context, method string, params json.RawMessage) (content.Stream, error) {
	resp, err := c.post(ctx, c.streamClient, streamPath, api.CallRequest{Method: method, Params: params, Stream: true}, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if !contenttype.NewMediaType(resp.Header.Get("Content-Type")).Matches(eventStreamMediaType) {
		resp.Body.Close()
		return nil, fmt.Errorf("expected an event stream, got %q", resp.Header.Get("Content-Type"))
	}

	return &frameStream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body api.CallRequest, accept string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mcprelay API at %s: %w", c.target, err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an *APIError, preferring the
// server's {"error": "..."} message over the raw body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var er api.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: er.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
