// Package mcprelaycmder
package mcprelaycmder

import (
	"github.com/spf13/cobra"

	callcmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/call"
	configcmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/config"
	methodscmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/methods"
	servecmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/serve"
	stdiocmder "github.com/papercomputeco/mcprelay/cmd/mcprelay/stdio"
	versioncmder "github.com/papercomputeco/mcprelay/cmd/version"
)

const mcprelayLongDesc string = `mcprelay serves a small table of MCP methods over HTTP, SSE and stdio,
relaying upstream-backed methods to a remote MCP service.

Run services using:
  mcprelay serve api      Run the method API server
  mcprelay serve proxy    Run the SSE passthrough proxy
  mcprelay serve          Run both servers together
  mcprelay stdio          Serve the methods as an MCP server over stdio

Talk to a running API server using:
  mcprelay methods        List the registered methods
  mcprelay call <method>  Call a method`

const mcprelayShortDesc string = "mcprelay - MCP method relay"

func NewMcprelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mcprelay",
		Short:        mcprelayShortDesc,
		Long:         mcprelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write service logs as JSON")
	cmd.PersistentFlags().Bool("log-pretty", false, "Write colorized, human readable service logs")
	cmd.PersistentFlags().String("log-file", "", "Also append service logs to this file as JSON")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .mcprelay/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(stdiocmder.NewStdioCmd())
	cmd.AddCommand(callcmder.NewCallCmd())
	cmd.AddCommand(methodscmder.NewMethodsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
