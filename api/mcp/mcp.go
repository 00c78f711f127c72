// Package mcp exposes the method registry as an MCP (Model Context Protocol)
// server. Tools, prompts and resources are derived from registry entries and
// every call is routed through the dispatcher.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/logger"
	"github.com/papercomputeco/mcprelay/pkg/registry"
	"github.com/papercomputeco/mcprelay/pkg/utils"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

const serverName = "mcprelay"

// ResourceURIPrefix prefixes the URI of every resource entry.
const ResourceURIPrefix = "mcp://resource/"

type Config struct {
	// Dispatcher routes every tool, prompt and resource call. Required.
	Dispatcher *dispatch.Dispatcher

	// Pool receives call telemetry. Optional.
	Pool *worker.Pool

	// Upstream is recorded as the telemetry source upstream.
	Upstream string

	Logger *slog.Logger
}

type Server struct {
	config    Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server exposing every registry entry.
func NewServer(c Config) (*Server, error) {
	if c.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	s := &Server{
		config: c,
		logger: logger.OrNop(c.Logger),
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	for _, e := range c.Dispatcher.Registry().Entries() {
		switch e.Kind {
		case registry.KindPrompt:
			mcpServer.AddPrompt(&mcp.Prompt{
				Name:        e.Name,
				Description: e.Description,
				Arguments:   promptArguments(e.InputSchema),
			}, s.handlePrompt(e.Name))

		case registry.KindResource:
			mcpServer.AddResource(&mcp.Resource{
				URI:         ResourceURIPrefix + e.Name,
				Name:        e.Name,
				Description: e.Description,
				MIMEType:    "text/plain",
			}, s.handleResource(e.Name))

		default:
			mcpServer.AddTool(&mcp.Tool{
				Name:        e.Name,
				Description: e.Description,
				InputSchema: toolSchema(e.InputSchema),
			}, s.handleTool(e.Name))
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Connect serves a single session over the given transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

// RunStdio serves MCP over stdin/stdout until the client disconnects or ctx
// is canceled.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// toolSchema returns the entry schema, or an empty object schema since tools
// must declare one.
func toolSchema(schema map[string]any) map[string]any {
	if schema != nil {
		return schema
	}
	return map[string]any{"type": "object"}
}

// promptArguments derives prompt arguments from the properties of an object
// schema.
func promptArguments(schema map[string]any) []*mcp.PromptArgument {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	args := make([]*mcp.PromptArgument, 0, len(props))
	for _, name := range sortedKeys(props) {
		args = append(args, &mcp.PromptArgument{
			Name:     name,
			Required: required[name],
		})
	}
	return args
}
