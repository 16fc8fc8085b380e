// rfbridge relays MQTT commands to a 433 MHz transmitter and publishes the
// codes its receiver hears.
//
// Exit codes:
//   - 0: clean shutdown
//   - 1: error
//   - 3: restart requested (update applied or provisioning finished)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/rfbridge/internal/mode"
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

// exitRestart tells the supervisor to start the process again.
const exitRestart = 3

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, mode.ErrRestartRequested):
		cancel()
		os.Exit(exitRestart)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rfbridge",
		Short:         "MQTT to 433 MHz RF bridge",
		Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	addConfigFlag(root.PersistentFlags(), &configPath)

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bridge (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), resolveConfigPath(configPath))
			},
		},
		newEncodeCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "rfbridge %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
			},
		},
	)
	return root
}

func addConfigFlag(fs *pflag.FlagSet, path *string) {
	fs.StringVarP(path, "config", "c", "", "config file (default $RFBRIDGE_CONFIG or "+defaultConfigPath+")")
}

// resolveConfigPath prefers the flag, then RFBRIDGE_CONFIG, then the default.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("RFBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
