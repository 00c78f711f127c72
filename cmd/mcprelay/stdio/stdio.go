// Package stdiocmder serves the registered methods as an MCP server over
// stdin and stdout.
package stdiocmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/api/mcp"
	"github.com/papercomputeco/mcprelay/cmd/mcprelay/cmdutil"
	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/stack"
)

type stdioCommander struct {
	upstream        string
	upstreamTimeout string
	eventStream     string

	cfg    *config.Config
	logger *slog.Logger
}

var stdioFlags = []string{
	config.FlagUpstream,
	config.FlagUpstreamTimeout,
	config.FlagEventStream,
}

const stdioLongDesc string = `Serve the registered methods as an MCP server over stdio.

Tools, prompts and resources are exposed exactly as on the /mcp endpoint of
"mcprelay serve api". Logs are written to stderr; stdout carries the MCP
protocol only.`

const stdioShortDesc string = "Serve methods as an MCP server over stdio"

func NewStdioCmd() *cobra.Command {
	cmder := &stdioCommander{}

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: stdioShortDesc,
		Long:  stdioLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, stdioFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				closeLog func() error
				err      error
			)
			cmder.logger, closeLog, err = cmdutil.NewLogger(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &cmder.upstreamTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)

	return cmd
}

func (c *stdioCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := stack.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	server, err := mcp.NewServer(mcp.Config{
		Dispatcher: st.Dispatcher,
		Pool:       st.Pool,
		Upstream:   st.Relay.Endpoint(),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	c.logger.Info("serving mcp over stdio", "methods", st.Dispatcher.Registry().Len())

	if err := server.RunStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
