package api

import (
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mcprelay/api/mcp"
	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/logger"
)

// Server is the method API server.
type Server struct {
	config     Config
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	app        *fiber.App
}

// NewServer creates a new API server.
// The dispatcher is injected so the same registry can back the MCP stdio
// server when both run in one process.
func NewServer(config Config, dispatcher *dispatch.Dispatcher, log *slog.Logger) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	log = logger.OrNop(log)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:     config,
		dispatcher: dispatcher,
		logger:     log,
		app:        app,
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Dispatcher: dispatcher,
		Pool:       config.Pool,
		Upstream:   config.Upstream,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	app.Get("/ping", s.handlePing)
	app.Get("/methods", s.handleMethods)

	app.Post("/api/mcp", s.handleCall(false))
	app.Post("/api/mcp-stream", s.handleCall(true))
	app.All("/api/mcp", s.handleMethodNotAllowed)
	app.All("/api/mcp-stream", s.handleMethodNotAllowed)

	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}

	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"methods", s.dispatcher.Registry().Len(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
		"methods", s.dispatcher.Registry().Len(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
