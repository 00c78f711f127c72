// Package api provides the HTTP method API: buffered and streaming method
// calls, the method listing, the MCP streamable HTTP endpoint and metrics.
package api

import (
	"time"

	"github.com/papercomputeco/mcprelay/pkg/metrics"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// RequestTimeout bounds dispatch plus response emission of a single call.
	// Zero disables the deadline.
	RequestTimeout time.Duration

	// Upstream is recorded as the telemetry source for calls.
	Upstream string

	// Metrics is optional; /metrics is only served when it is set.
	Metrics *metrics.Metrics

	// Pool receives call telemetry. Optional.
	Pool *worker.Pool
}
