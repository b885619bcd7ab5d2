package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// infoTimeout bounds the whole info query, handshake included.
const infoTimeout = 15 * time.Second

var infoCmd = &cobra.Command{
	Use:   "info [address] [token]",
	Short: "Query a fan once and print its identity",
	Long: `Connect to a fan, print miIO.info and the profile its model resolves to.

Address and token default to fan.address and fan.token from the configuration.`,
	Example: `  graylogic-fan info 192.168.1.40 0123456789abcdef0123456789abcdef
  graylogic-fan info --config /etc/graylogic/fan.yaml`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	address, token, err := infoTarget(cmd, args)
	if err != nil {
		return err
	}
	if err := config.ValidateToken(token); err != nil {
		return fmt.Errorf("token %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), infoTimeout)
	defer cancel()

	return queryInfo(ctx, cmd.OutOrStdout(), miio.UDPDialer{}, address, token)
}

// infoTarget resolves the fan address and token from the arguments, falling
// back to the configuration file for whatever is missing.
func infoTarget(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}

	cfg, err := config.Load(getConfigPath(cmd))
	if err != nil {
		return "", "", fmt.Errorf("loading config: %w", err)
	}
	address := cfg.Fan.Address
	if len(args) == 1 {
		address = args[0]
	}
	return address, cfg.Fan.Token, nil
}

// queryInfo dials the fan, reads miIO.info and prints a summary to w.
func queryInfo(ctx context.Context, w io.Writer, dialer miio.Dialer, address, token string) error {
	t, err := dialer.Dial(ctx, address, token)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer t.Destroy() //nolint:errcheck // Session is discarded

	raw, err := t.Call(ctx, "miIO.info", []any{}, miio.CallOptions{})
	if err != nil {
		return fmt.Errorf("reading miIO.info: %w", err)
	}
	var info miio.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("decoding miIO.info: %w", err)
	}

	model := info.Model
	if model == "" {
		model = t.Model()
	}

	printInfo(w, address, t.DeviceID(), model, info)
	return nil
}

// printInfo writes the info summary. Colour is disabled automatically when w
// is not a terminal.
func printInfo(w io.Writer, address, deviceID, model string, info miio.Info) {
	label := color.New(color.FgCyan).SprintFunc()
	value := color.New(color.Bold).SprintFunc()

	row := func(name, v string) {
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(w, "%s %s\n", label(fmt.Sprintf("%-10s", name+":")), value(v))
	}

	row("Address", address)
	row("Device ID", deviceID)
	row("Model", model)
	row("Firmware", info.FirmwareVersion)
	row("Hardware", info.HardwareVersion)
	row("MAC", info.MAC)
	row("IP", info.Network.LocalIP)

	row("Family", fan.ProfileFamily(model))
	if !fan.KnownModel(model) {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprintf("model %q is not a known fan; the generic profile will be used", model))
	}
}
