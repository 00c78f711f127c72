// Package apicmder provides the method API server cobra command.
package apicmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/api"
	"github.com/papercomputeco/mcprelay/cmd/mcprelay/cmdutil"
	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/stack"
)

type apiCommander struct {
	listen          string
	upstream        string
	upstreamTimeout string
	requestTimeout  string
	eventStream     string
	kafkaTopic      string

	cfg    *config.Config
	logger *slog.Logger
}

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagUpstream,
	config.FlagUpstreamTimeout,
	config.FlagRequestTimeout,
	config.FlagEventStream,
	config.FlagKafkaTopic,
}

const apiLongDesc string = `Run the mcprelay method API server.

Endpoints:
  GET  /ping             Liveness check
  GET  /methods          List registered methods
  POST /api/mcp          Call a method (JSON, or SSE with "stream": true)
  POST /api/mcp-stream   Call a method, streaming when the client accepts SSE
  ALL  /mcp              MCP streamable HTTP transport
  GET  /metrics          Prometheus metrics`

const apiShortDesc string = "Run the mcprelay method API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, apiFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				closeLog func() error
				err      error
			)
			cmder.logger, closeLog, err = cmdutil.NewLogger(cmd, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLog()

			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &cmder.upstreamTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagRequestTimeout, &cmder.requestTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

// NewServer builds the API server for cfg on top of a shared stack.
func NewServer(cfg *config.Config, st *stack.Stack, log *slog.Logger) (*api.Server, error) {
	requestTimeout, err := config.ParseDuration(cfg.API.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("api request timeout: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		RequestTimeout: requestTimeout,
		Upstream:       st.Relay.Endpoint(),
		Metrics:        st.Metrics,
		Pool:           st.Pool,
	}, st.Dispatcher, log)
	if err != nil {
		return nil, fmt.Errorf("creating api server: %w", err)
	}
	return server, nil
}

func (c *apiCommander) run(cmd *cobra.Command) error {
	st, err := stack.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	server, err := NewServer(c.cfg, st, c.logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	runErr := cmdutil.WaitForShutdown(cmd.Context(), c.logger, errChan)
	return errors.Join(runErr, server.Shutdown())
}
