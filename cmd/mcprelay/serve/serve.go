// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/cmd/mcprelay/cmdutil"
	apicmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/serve/api"
	proxycmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/serve/proxy"
	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/stack"
)

type ServeCommander struct {
	proxyListen     string
	proxyUpstream   string
	apiListen       string
	upstream        string
	upstreamTimeout string
	requestTimeout  string
	eventStream     string
	kafkaTopic      string

	cfg    *config.Config
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagProxyUpstream,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagUpstreamTimeout,
	config.FlagRequestTimeout,
	config.FlagEventStream,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run mcprelay services.

Use subcommands to run individual services or all services together:
  mcprelay serve          Run both the SSE proxy and the method API server
  mcprelay serve api      Run just the method API server
  mcprelay serve proxy    Run just the SSE proxy

Flags override environment variables (MCPRELAY_*), which override
config.toml values.`

const serveShortDesc string = "Run mcprelay services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, serveFlags)
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

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProxyUpstream, &cmder.proxyUpstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &cmder.upstreamTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagRequestTimeout, &cmder.requestTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	st, err := stack.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	apiServer, err := apicmder.NewServer(c.cfg, st, c.logger)
	if err != nil {
		return err
	}

	p, err := proxycmder.NewProxy(c.cfg, st, c.logger)
	if err != nil {
		return err
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	runErr := cmdutil.WaitForShutdown(ctx, c.logger, errChan)

	return errors.Join(runErr, apiServer.Shutdown(), p.Close())
}
