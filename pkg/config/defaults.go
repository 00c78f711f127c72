package config

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultAPIListen       = ":8081"
	defaultProxyListen     = ":8080"
	defaultUpstream        = "https://mcp.deepwiki.com/sse"
	defaultUpstreamTimeout = "5m"

	defaultEventStreamTopic = "mcprelay.calls"

	defaultClientAPITarget = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Proxy: ProxyConfig{
			Listen:   defaultProxyListen,
			Upstream: defaultUpstream,
		},
		Upstream: UpstreamConfig{
			Endpoint: defaultUpstream,
			Timeout:  defaultUpstreamTimeout,
		},
		EventStream: EventStreamConfig{
			Provider: EventStreamNop,
			Topic:    defaultEventStreamTopic,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
