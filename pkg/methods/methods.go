// Package methods implements the built-in method table.
package methods

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/registry"
	"github.com/papercomputeco/mcprelay/pkg/upstream"
)

// Method names.
const (
	Add        = "add"
	Flowgram   = "flowgram"
	DeepWiki   = "deepwiki"
	ReviewCode = "review-code"
	Filename   = "filename"
)

// FilenameURI is the resource URI the filename method answers for.
const FilenameURI = "mcp://resource/filename"

const flowgramBase = "http://flowgram.ai?q="

// Caller performs upstream calls. *upstream.Relay satisfies it.
type Caller interface {
	Call(ctx context.Context, req upstream.Request) (content.Stream, error)
}

// NewRegistry registers every built-in method and returns the frozen
// registry. Upstream-backed methods are registered only when caller is non-nil.
func NewRegistry(caller Caller) (*registry.Registry, error) {
	b := registry.NewBuilder()
	for _, e := range Entries(caller) {
		if err := b.Register(e); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Entries returns the built-in entries.
func Entries(caller Caller) []registry.Entry {
	entries := []registry.Entry{
		{
			Name:        Add,
			Kind:        registry.KindTool,
			Description: "Add two numbers",
			InputSchema: objectSchema(map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			}, "a", "b"),
			Handler: registry.HandlerFunc(add),
		},
		{
			Name:        Flowgram,
			Kind:        registry.KindTool,
			Description: "Build a Flowgram search link for a query",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string"},
			}, "query"),
			Handler: registry.HandlerFunc(flowgram),
		},
		{
			Name:        ReviewCode,
			Kind:        registry.KindPrompt,
			Description: "Ask for a review of a piece of code",
			InputSchema: objectSchema(map[string]any{
				"code": map[string]any{"type": "string"},
			}, "code"),
			Handler: registry.HandlerFunc(reviewCode),
		},
		{
			Name:        Filename,
			Kind:        registry.KindResource,
			Description: "Contents of the filename resource",
			Handler:     registry.HandlerFunc(filename),
		},
	}

	if caller != nil {
		entries = append(entries, registry.Entry{
			Name:        DeepWiki,
			Kind:        registry.KindTool,
			Description: "Ask DeepWiki a question about a repository",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string"},
			}, "query"),
			Handler: &deepWiki{caller: caller},
		})
	}

	return entries
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func add(_ context.Context, params json.RawMessage) (content.Result, error) {
	var p struct {
		A *float64 `json:"a"`
		B *float64 `json:"b"`
	}
	if err := decodeParams(Add, params, &p); err != nil {
		return content.Result{}, err
	}
	if p.A == nil || p.B == nil {
		return content.Result{}, registry.ErrInvalidParams{Method: Add, Reason: "a and b must be numbers"}
	}

	return content.TextResult(formatNumber(*p.A + *p.B)), nil
}

func flowgram(_ context.Context, params json.RawMessage) (content.Result, error) {
	query, err := stringParam(Flowgram, params, "query")
	if err != nil {
		return content.Result{}, err
	}

	return content.TextResult("Flowgram link: " + flowgramBase + escapeComponent(query)), nil
}

// componentUnescaper undoes the QueryEscape encodings that a URI component
// keeps literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent percent-encodes s as a URI component: spaces become %20
// and the marks !'()* stay literal.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func reviewCode(_ context.Context, params json.RawMessage) (content.Result, error) {
	code, err := stringParam(ReviewCode, params, "code")
	if err != nil {
		return content.Result{}, err
	}

	return content.TextResult("Please review this code:\n\n" + code), nil
}

func filename(context.Context, json.RawMessage) (content.Result, error) {
	return content.TextResult("content of filename"), nil
}

// deepWiki forwards a question upstream as the "query" method.
type deepWiki struct {
	caller Caller
}

func (d *deepWiki) Call(ctx context.Context, params json.RawMessage) (content.Result, error) {
	s, err := d.open(ctx, params, false)
	if err != nil {
		return content.Result{}, err
	}
	return content.Collect(s)
}

func (d *deepWiki) Stream(ctx context.Context, params json.RawMessage) (content.Stream, error) {
	return d.open(ctx, params, true)
}

func (d *deepWiki) open(ctx context.Context, params json.RawMessage, stream bool) (content.Stream, error) {
	query, err := stringParam(DeepWiki, params, "query")
	if err != nil {
		return nil, err
	}

	upstreamParams, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("encoding deepwiki params: %w", err)
	}

	return d.caller.Call(ctx, upstream.Request{
		Method: "query",
		Params: upstreamParams,
		Stream: stream,
	})
}

// decodeParams unmarshals params into v. Absent params decode as an empty
// object.
func decodeParams(method string, params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return registry.ErrInvalidParams{Method: method, Reason: err.Error()}
	}
	return nil
}

// stringParam returns the required string field key from params.
func stringParam(method string, params json.RawMessage, key string) (string, error) {
	var p map[string]json.RawMessage
	if err := decodeParams(method, params, &p); err != nil {
		return "", err
	}

	raw, ok := p[key]
	if !ok {
		return "", registry.ErrInvalidParams{Method: method, Reason: key + " is required"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", registry.ErrInvalidParams{Method: method, Reason: key + " must be a string"}
	}
	return s, nil
}
