package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --upstream on "mcprelay serve" and "mcprelay serve api") cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagAPIListen       = "api-listen"
	FlagProxyListen     = "proxy-listen"
	FlagProxyUpstream   = "proxy-upstream"
	FlagUpstream        = "upstream"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagRequestTimeout  = "request-timeout"
	FlagEventStream     = "event-stream"
	FlagKafkaTopic      = "kafka-topic"
	FlagAPITarget       = "api-target"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagAPIListenStandalone   = "api-listen-standalone"
	FlagProxyListenStandalone = "proxy-listen-standalone"

	// FlagProxyUpstreamStandalone is "upstream" on "mcprelay serve proxy",
	// bound to the proxy's upstream rather than the method relay's.
	FlagProxyUpstreamStandalone = "proxy-upstream-standalone"
)

// Flags is the registry of every flag mcprelay commands share.
var Flags = FlagSet{
	FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the method API server to listen on",
	},
	FlagAPIListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the method API server to listen on",
	},
	FlagProxyListen: {
		Name:        "proxy-listen",
		Shorthand:   "p",
		ViperKey:    "proxy.listen",
		Description: "Address for the SSE proxy to listen on",
	},
	FlagProxyListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "proxy.listen",
		Description: "Address for the SSE proxy to listen on",
	},
	FlagProxyUpstream: {
		Name:        "proxy-upstream",
		ViperKey:    "proxy.upstream",
		Description: "Upstream SSE service the proxy forwards to",
	},
	FlagProxyUpstreamStandalone: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "proxy.upstream",
		Description: "Upstream SSE service the proxy forwards to",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "upstream.endpoint",
		Description: "Upstream endpoint for upstream-backed methods",
	},
	FlagUpstreamTimeout: {
		Name:        "upstream-timeout",
		ViperKey:    "upstream.timeout",
		Description: "Timeout for a whole upstream call, including streaming",
	},
	FlagRequestTimeout: {
		Name:        "request-timeout",
		ViperKey:    "api.request_timeout",
		Description: "Deadline for dispatching and emitting one API call (0 disables)",
	},
	FlagEventStream: {
		Name:        "event-stream",
		ViperKey:    "event_stream.provider",
		Description: "Call telemetry publisher (nop, kafka)",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "event_stream.topic",
		Description: "Kafka topic for call telemetry",
	},
	FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "URL of the running mcprelay API server",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// Load resolves the effective configuration for cmd. It reads the
// --config-dir flag (usually inherited from the root command), binds the
// given registry flags and merges flags, environment and file.
func Load(cmd *cobra.Command, fs FlagSet, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, fs, registryKeys)

	cfg, err := FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
