package proxy

import (
	"net/http"
	"time"

	"github.com/papercomputeco/mcprelay/pkg/metrics"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

// DefaultTimeout bounds a whole proxied exchange, including streaming.
const DefaultTimeout = 5 * time.Minute

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream SSE endpoint every request is forwarded to
	// (e.g., "https://mcp.deepwiki.com/sse"). The client's query string is
	// carried over.
	UpstreamURL string

	// HTTPClient is used for upstream requests. Defaults to a client with
	// Timeout as its deadline.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Pool receives call telemetry. Optional.
	Pool *worker.Pool
}
