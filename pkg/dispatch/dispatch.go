// Package dispatch routes a method call to its registered handler and hands
// back either a complete result or a live stream, depending on what the
// caller asked for and what the handler can do.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/logger"
	"github.com/papercomputeco/mcprelay/pkg/metrics"
	"github.com/papercomputeco/mcprelay/pkg/registry"
	"github.com/papercomputeco/mcprelay/pkg/upstream"
)

// Outcome is the product of a dispatch. Exactly one of Result and Stream is set.
type Outcome struct {
	Method string

	Result *content.Result
	Stream content.Stream
}

// Streaming reports whether the outcome carries a live stream.
func (o *Outcome) Streaming() bool {
	return o != nil && o.Stream != nil
}

// Config configures a Dispatcher.
type Config struct {
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Dispatcher is safe for concurrent use: its only state is the read-only
// registry.
type Dispatcher struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Dispatcher.
func New(c Config) (*Dispatcher, error) {
	if c.Registry == nil {
		return nil, errors.New("dispatcher requires a registry")
	}

	return &Dispatcher{
		registry: c.Registry,
		metrics:  c.Metrics,
		logger:   logger.OrNop(c.Logger),
	}, nil
}

// Registry returns the registry the dispatcher routes against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch invokes the handler registered for method exactly once.
//
// When wantsStream is set and the handler can stream, the returned Outcome
// holds the handler's stream untouched and the caller owns it. Otherwise the
// Outcome holds a complete Result; a streaming handler's Call drives its
// stream to completion, yielding the same chunks the stream would have.
//
// Errors from an unknown method or from the handler are returned as is.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage, wantsStream bool) (*Outcome, error) {
	start := time.Now()
	mode := metrics.ModeBuffered
	if wantsStream {
		mode = metrics.ModeStreaming
	}

	entry, err := d.registry.Lookup(method)
	if err != nil {
		d.logger.Debug("dispatch rejected", "method", method, "error", err)
		d.metrics.ObserveDispatch(metrics.UnknownMethod, mode, metrics.OutcomeNotFound, time.Since(start))
		return nil, err
	}

	outcome, err := d.invoke(ctx, entry, params, wantsStream)
	if err != nil {
		d.logger.Debug("dispatch failed",
			"method", method,
			"mode", mode,
			"error", err,
		)
		d.metrics.ObserveDispatch(entry.Name, mode, Classify(err), time.Since(start))
		return nil, err
	}

	d.logger.Debug("dispatched",
		"method", method,
		"mode", mode,
		"streaming", outcome.Streaming(),
	)

	// Streams are accounted for by whoever drains them.
	if !outcome.Streaming() {
		d.metrics.ObserveDispatch(entry.Name, mode, metrics.OutcomeOK, time.Since(start))
	}
	return outcome, nil
}

func (d *Dispatcher) invoke(ctx context.Context, entry registry.Entry, params json.RawMessage, wantsStream bool) (*Outcome, error) {
	if sh, ok := entry.Handler.(registry.StreamHandler); ok && wantsStream {
		stream, err := sh.Stream(ctx, params)
		if err != nil {
			return nil, err
		}
		return &Outcome{Method: entry.Name, Stream: stream}, nil
	}

	// Streaming handlers drain their own stream in Call.
	res, err := entry.Handler.Call(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Outcome{Method: entry.Name, Result: &res}, nil
}

// Classify maps an error to a metrics outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case registry.IsNotFound(err):
		return metrics.OutcomeNotFound
	case registry.IsInvalidParams(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, upstream.ErrUnreachable),
		errors.Is(err, upstream.ErrStreamMissing),
		errors.Is(err, upstream.ErrMidStream):
		return metrics.OutcomeUpstream
	default:
		return metrics.OutcomeError
	}
}
