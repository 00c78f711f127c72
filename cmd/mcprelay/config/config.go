// Package configcmder provides the config command for managing persistent
// mcprelay configuration stored in the .mcprelay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/pkg/cliui"
	"github.com/papercomputeco/mcprelay/pkg/config"
)

const configLongDesc string = `Manage persistent mcprelay configuration.

Configuration is stored as config.toml in the .mcprelay/ directory and provides
default values for command flags. CLI flags and MCPRELAY_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen, api.request_timeout,
  proxy.listen, proxy.upstream,
  upstream.endpoint, upstream.timeout,
  event_stream.provider, event_stream.brokers, event_stream.topic,
  client.api_target

Use subcommands to get, set, or list configuration values:
  mcprelay config set <key> <value>    Set a configuration value
  mcprelay config get <key>            Get a configuration value
  mcprelay config list                 List all configuration values

Examples:
  mcprelay config set upstream.endpoint https://mcp.deepwiki.com/sse
  mcprelay config set event_stream.brokers kafka-1:9092,kafka-2:9092
  mcprelay config get upstream.timeout
  mcprelay config list`

const configShortDesc string = "Manage persistent mcprelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys completes the first positional argument with config keys.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// printTarget prints which config file is in use.
func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
