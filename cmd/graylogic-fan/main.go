// Gray Logic Fan - Xiaomi fan bridge
//
// This is the main entry point for the Gray Logic fan bridge. It connects to
// one Xiaomi/Dmaker/Zhimi fan over the local miIO protocol and exposes it to
// Gray Logic Core over MQTT and a REST/WebSocket API.
//
// Commands:
//   - run:     start the bridge (the default when no command is given)
//   - info:    query the fan once and print its identity
//   - version: print build information
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the configuration file path.
const configEnvVar = "GRAYLOGIC_FAN_CONFIG"

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "graylogic-fan",
	Short: "Gray Logic bridge for Xiaomi fans",
	Long: `Gray Logic bridge for Xiaomi, Dmaker and Zhimi smart fans.

Connects to one fan over the local miIO protocol (UDP 54321), polls its
state and exposes it to Gray Logic Core:

- MQTT state, capability and command topics
- REST API and WebSocket event stream
- SQLite state history, InfluxDB telemetry and Prometheus metrics`,
	Version: formatVersion(version),
	RunE:    runBridge,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "",
		fmt.Sprintf("Configuration file (default %q, or $%s)", defaultConfigPath, configEnvVar))
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then GRAYLOGIC_FAN_CONFIG, then the default.
func getConfigPath(cmd *cobra.Command) string {
	if cmd != nil {
		if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
			return path
		}
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "graylogic-fan %s (commit %s, built %s)\n",
			formatVersion(version), commit, date)
	},
}
