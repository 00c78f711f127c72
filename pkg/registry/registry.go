// Package registry maps method names to handlers.
//
// A Registry is assembled once with a Builder and is read-only afterwards, so
// lookups need no locking and the method set cannot change while requests are
// in flight.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/papercomputeco/mcprelay/pkg/content"
)

// Kind classifies how a method is exposed on the MCP surface.
type Kind string

const (
	KindTool     Kind = "tool"
	KindPrompt   Kind = "prompt"
	KindResource Kind = "resource"
)

// Handler produces a complete result for a method call.
type Handler interface {
	Call(ctx context.Context, params json.RawMessage) (content.Result, error)
}

// StreamHandler is a Handler that can also produce its result incrementally.
// Only upstream-backed methods implement it. Call must yield the same chunks
// as draining Stream.
type StreamHandler interface {
	Handler
	Stream(ctx context.Context, params json.RawMessage) (content.Stream, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (content.Result, error)

// Call calls f(ctx, params).
func (f HandlerFunc) Call(ctx context.Context, params json.RawMessage) (content.Result, error) {
	return f(ctx, params)
}

// Entry is a registered method.
type Entry struct {
	Name        string
	Kind        Kind
	Description string

	// InputSchema is the JSON schema of the params object, advertised to MCP
	// clients. Nil means the method takes no params.
	InputSchema map[string]any

	Handler Handler
}

// Streaming reports whether the entry's handler can stream.
func (e Entry) Streaming() bool {
	_, ok := e.Handler.(StreamHandler)
	return ok
}

// Builder collects entries before the registry is frozen.
type Builder struct {
	entries map[string]Entry
	built   bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]Entry)}
}

// Register adds an entry. Names are unique; registering a name twice is an
// error rather than a silent override.
func (b *Builder) Register(e Entry) error {
	if b.built {
		return ErrRegistryBuilt
	}
	if e.Name == "" {
		return errors.New("registering method: empty name")
	}
	if e.Handler == nil {
		return fmt.Errorf("registering method %q: nil handler", e.Name)
	}
	if _, ok := b.entries[e.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, e.Name)
	}

	if e.Kind == "" {
		e.Kind = KindTool
	}
	b.entries[e.Name] = e
	return nil
}

// MustRegister is like Register but panics on error. It is meant for the
// static method table assembled at startup.
func (b *Builder) MustRegister(entries ...Entry) *Builder {
	for _, e := range entries {
		if err := b.Register(e); err != nil {
			panic(err)
		}
	}
	return b
}

// Build freezes the builder and returns the registry. Further calls to
// Register fail.
func (b *Builder) Build() *Registry {
	b.built = true
	return &Registry{entries: maps.Clone(b.entries)}
}

// Registry is an immutable method table, safe for concurrent use.
type Registry struct {
	entries map[string]Entry
}

// Lookup returns the entry for method, or ErrMethodNotFound.
func (r *Registry) Lookup(method string) (Entry, error) {
	e, ok := r.entries[method]
	if !ok {
		return Entry{}, ErrMethodNotFound{Method: method}
	}
	return e, nil
}

// Entries returns all entries sorted by name.
func (r *Registry) Entries() []Entry {
	out := slices.Collect(maps.Values(r.entries))
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Len returns the number of registered methods.
func (r *Registry) Len() int {
	return len(r.entries)
}
