// Package proxycmder provides the SSE proxy server command.
package proxycmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/cmd/mcprelay/cmdutil"
	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/stack"
	"github.com/papercomputeco/mcprelay/proxy"
)

type proxyCommander struct {
	listen      string
	upstream    string
	eventStream string
	kafkaTopic  string

	cfg    *config.Config
	logger *slog.Logger
}

var proxyFlags = []string{
	config.FlagProxyListenStandalone,
	config.FlagProxyUpstreamStandalone,
	config.FlagEventStream,
	config.FlagKafkaTopic,
}

const proxyLongDesc string = `Run the SSE passthrough proxy.

The proxy forwards every request to the configured upstream service. Event
stream responses are relayed byte for byte as they arrive, and a final "end"
event is appended unless the upstream already ended the stream. Any other
response is relayed unchanged.`

const proxyShortDesc string = "Run the mcprelay SSE proxy"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, proxyFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyUpstreamStandalone, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

// NewProxy builds the SSE proxy for cfg on top of a shared stack.
func NewProxy(cfg *config.Config, st *stack.Stack, log *slog.Logger) (*proxy.Proxy, error) {
	p, err := proxy.New(proxy.Config{
		ListenAddr:  cfg.Proxy.Listen,
		UpstreamURL: cfg.Proxy.Upstream,
		Metrics:     st.Metrics,
		Pool:        st.Pool,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating proxy: %w", err)
	}
	return p, nil
}

func (c *proxyCommander) run(cmd *cobra.Command) error {
	st, err := stack.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := NewProxy(c.cfg, st, c.logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	runErr := cmdutil.WaitForShutdown(cmd.Context(), c.logger, errChan)
	return errors.Join(runErr, p.Close())
}
