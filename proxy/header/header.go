// Package header filters headers for the SSE passthrough proxy.
//
// The proxy sits between a client and an upstream SSE service like so:
//
//	Client <--> Proxy <--> Upstream SSE service
//
// and each leg negotiates hops, encoding and buffering independently, so
// connection-scoped headers are never copied across.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ForwardedForHeader carries the client address to the upstream.
const ForwardedForHeader = "X-Forwarded-For"

// hopByHop headers are only meaningful for a single transport-level
// connection and are dropped in both directions.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream.
var skipRequest = withHopByHop(
	// Go's http.Transport sets Host from the upstream URL.
	"Host",

	// Stripped so that http.Transport adds its own "Accept-Encoding: gzip"
	// and transparently decompresses the upstream response.
	"Accept-Encoding",

	// Recomputed by http.Transport from the forwarded body.
	"Content-Length",
)

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = withHopByHop(
	// The proxy always reads a decompressed body, so a stale Content-Encoding
	// would claim an encoding the body no longer has.
	"Content-Encoding",

	// The upstream length describes the compressed body, and event streams
	// are relayed chunked with an appended terminal frame.
	"Content-Length",
)

func withHopByHop(extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(hopByHop)+len(extra))
	for _, k := range append(hopByHop, extra...) {
		set[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	return set
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not
// forward, and appends the client address to X-Forwarded-For.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Add(k, string(value))
		}
	})

	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get(ForwardedForHeader); prior != "" {
			ip = prior + ", " + ip
		}
		req.Header.Set(ForwardedForHeader, ip)
	}
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetEventStreamHeaders marks the client response as an unbuffered,
// uncached event stream. It runs after SetClientResponseHeaders and wins
// over whatever the upstream sent.
func (h *Handler) SetEventStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}
