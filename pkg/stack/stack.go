// Package stack assembles the shared runtime of an mcprelay process from
// configuration: the upstream relay, the method registry and dispatcher,
// metrics and the telemetry worker pool.
package stack

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/eventstream"
	"github.com/papercomputeco/mcprelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/mcprelay/pkg/eventstream/nop"
	"github.com/papercomputeco/mcprelay/pkg/logger"
	"github.com/papercomputeco/mcprelay/pkg/methods"
	"github.com/papercomputeco/mcprelay/pkg/metrics"
	"github.com/papercomputeco/mcprelay/pkg/upstream"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

// Stack holds the components shared by the API server, the proxy and the
// stdio MCP server.
type Stack struct {
	Config     *config.Config
	Relay      *upstream.Relay
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Metrics
	Pool       *worker.Pool
}

// New builds a Stack. Close releases the worker pool and publisher.
func New(cfg *config.Config, log *slog.Logger) (*Stack, error) {
	log = logger.OrNop(log)

	upstreamTimeout, err := config.ParseDuration(cfg.Upstream.Timeout)
	if err != nil {
		return nil, fmt.Errorf("upstream timeout: %w", err)
	}

	relay, err := upstream.New(upstream.Config{
		Endpoint: cfg.Upstream.Endpoint,
		Timeout:  upstreamTimeout,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating upstream relay: %w", err)
	}

	reg, err := methods.NewRegistry(relay)
	if err != nil {
		return nil, fmt.Errorf("building method registry: %w", err)
	}

	m := metrics.New()

	d, err := dispatch.New(dispatch.Config{
		Registry: reg,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	publisher, err := NewPublisher(cfg.EventStream)
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating worker pool: %w", err), publisher.Close())
	}

	log.Debug("stack ready",
		"upstream", relay.Endpoint(),
		"methods", reg.Len(),
		"event_stream", cfg.EventStream.Provider,
	)

	return &Stack{
		Config:     cfg,
		Relay:      relay,
		Dispatcher: d,
		Metrics:    m,
		Pool:       pool,
	}, nil
}

// NewPublisher returns the telemetry publisher selected by the config.
func NewPublisher(c config.EventStreamConfig) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", config.EventStreamNop:
		return nop.NewPublisher(), nil
	case config.EventStreamKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event stream provider %q", c.Provider)
	}
}

// Close drains the worker pool and closes the publisher.
func (s *Stack) Close() error {
	return s.Pool.Close()
}
