// castbridge exposes a legacy Samsung TV and a Cast receiver as a single
// accessory with power, volume, channel and remote-key characteristics.
//
// The run command bridges the accessory to an MQTT host bus. The one-shot
// commands (power, volume, step, channel, key, status) drive the same core
// directly, and discover lists Cast receivers on the local network.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "castbridge",
		Short:   "TV and Cast receiver accessory bridge",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Long: `castbridge combines a legacy Samsung TV (remote-control protocol, port 55000)
and a Cast receiver (port 8009) into one accessory. Power falls back to
launching an app on the receiver, volume is read from the receiver, and
channels and keys are sent as remote-control key sequences.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"configuration file (default $CASTBRIDGE_CONFIG or configs/config.yaml)")

	root.AddCommand(runCmd(opts))
	root.AddCommand(powerCmd(opts))
	root.AddCommand(volumeCmd(opts))
	root.AddCommand(stepCmd(opts))
	root.AddCommand(muteCmd(opts))
	root.AddCommand(channelCmd(opts))
	root.AddCommand(keyCmd(opts))
	root.AddCommand(statusCmd(opts))
	root.AddCommand(discoverCmd())

	return root
}
