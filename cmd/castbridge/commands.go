package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/infrastructure/config"
	"github.com/nerrad567/castbridge/internal/infrastructure/logging"
)

// oneShotTimeout bounds a one-shot command including the secondary connect.
const oneShotTimeout = 30 * time.Second

var errUsage = errors.New("invalid argument")

// withAccessory loads the configuration, builds the accessory, connects the
// secondary, refreshes the cached state once and calls fn. Connect and
// refresh failures are logged, not returned: the operation reports its own
// error when it needs the failed device.
func withAccessory(cmd *cobra.Command, opts *options, fn func(ctx context.Context, acc *accessory.Accessory) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
	defer cancel()

	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Keep stdout for command output.
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = logging.FormatConsole
	log := logging.New(cfg.Logging, version)

	acc, err := newAccessory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer acc.Stop()

	if err := acc.Connect(ctx); err != nil {
		log.Warn("secondary device unavailable", "error", err)
	}
	if err := acc.Refresh(ctx); err != nil {
		log.Debug("refresh failed", "error", err)
	}

	if err := fn(ctx, acc); err != nil {
		return err
	}
	return printStatus(cmd.OutOrStdout(), acc.Snapshot())
}

// parseOnOff accepts on/off and the usual boolean spellings.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not on or off", errUsage, s)
	}
}

// parseStep converts "up [n]" or "down [n]" to a signed volume step.
func parseStep(args []string) (int, error) {
	n := 1
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: step size %q", errUsage, args[1])
		}
		n = v
	}
	switch strings.ToLower(args[0]) {
	case "up":
		return n, nil
	case "down":
		return -n, nil
	default:
		return 0, fmt.Errorf("%w: direction %q is not up or down", errUsage, args[0])
	}
}

func powerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "power on|off",
		Short: "Switch the TV on or off",
		Long: `Switch the TV on or off with a remote-control key. When the TV does not
acknowledge, power on falls back to launching the receiver app, which wakes
the TV over HDMI-CEC.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				return acc.SetPower(ctx, on)
			})
		},
	}
}

func volumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "volume PERCENT",
		Short: "Set the receiver volume (0-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: volume %q", errUsage, args[0])
			}
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				_, err := acc.SetVolume(ctx, pct)
				return err
			})
		},
	}
}

func stepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "step up|down [N]",
		Short: "Press volume up or down N times (default 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := parseStep(args)
			if err != nil {
				return err
			}
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				return acc.StepVolume(ctx, step)
			})
		},
	}
}

func muteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mute",
		Short: "Toggle mute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				return acc.ToggleMute(ctx)
			})
		},
	}
}

func channelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "channel NUMBER",
		Short: "Tune to a channel by sending its digits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				return acc.SetChannel(ctx, args[0])
			})
		},
	}
}

func keyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "key NAME",
		Short: "Send a remote-control key, e.g. MENU or SOURCE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccessory(cmd, opts, func(ctx context.Context, acc *accessory.Accessory) error {
				return acc.SetKey(ctx, args[0])
			})
		},
	}
}
