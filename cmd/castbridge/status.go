package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/bridges/cast"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	offColor  = color.New(color.FgRed)
)

func statusCmd(opts *options) *cobra.Command {
	var describe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show power, volume, channel and connection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if describe {
				return printCharacteristics(cmd.OutOrStdout(), accessory.Characteristics())
			}
			return withAccessory(cmd, opts, func(context.Context, *accessory.Accessory) error {
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&describe, "characteristics", false, "list the characteristic descriptors instead of querying devices")
	return cmd
}

// printStatus writes a snapshot as aligned, coloured lines.
func printStatus(w io.Writer, snap accessory.Snapshot) error {
	power := offColor.Sprint("off")
	if snap.PowerOn {
		power = okColor.Sprint("on")
	}

	volume := warnColor.Sprint("unavailable")
	secondary := warnColor.Sprint(snap.Secondary)
	if snap.Secondary == accessory.Connected.String() {
		volume = fmt.Sprintf("%d%%", snap.VolumePercent)
		secondary = okColor.Sprint(snap.Secondary)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Accessory:\t%s\n", snap.Name)
	fmt.Fprintf(tw, "Power:\t%s\n", power)
	fmt.Fprintf(tw, "Volume:\t%s\n", volume)
	fmt.Fprintf(tw, "Channel:\t%s\n", snap.Channel)
	fmt.Fprintf(tw, "Key:\t%s\n", snap.Key)
	fmt.Fprintf(tw, "Receiver:\t%s\n", secondary)
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated:\t%s\n", snap.UpdatedAt.Local().Format(time.TimeOnly))
	}
	return tw.Flush()
}

// printCharacteristics writes the characteristic descriptors as a table.
func printCharacteristics(w io.Writer, chars []accessory.DeviceCharacteristic) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFORMAT\tRANGE\tPERMS\tDEFAULT")
	for _, c := range chars {
		rng := "-"
		if c.Format == accessory.FormatInt {
			rng = fmt.Sprintf("%d..%d/%d", c.Min, c.Max, c.Step)
			if c.Unit != accessory.UnitNone {
				rng += " " + string(c.Unit)
			}
		}
		perms := make([]string, len(c.Perms))
		for i, p := range c.Perms {
			perms[i] = string(p)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", c.Name, c.Format, rng, strings.Join(perms, ","), c.Default)
	}
	return tw.Flush()
}

func discoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List Cast receivers on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()

			receivers, err := cast.NewDiscoverer(timeout, discoveryQuery).Discover(ctx)
			if err != nil {
				return fmt.Errorf("discovering receivers: %w", err)
			}
			return printReceivers(cmd.OutOrStdout(), receivers)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", cast.DefaultDiscoveryTimeout, "how long to listen for answers")
	return cmd
}

// discoveryQuery runs mDNS queries for discover. Replaced in tests.
var discoveryQuery cast.QueryFunc

func printReceivers(w io.Writer, receivers []cast.Receiver) error {
	if len(receivers) == 0 {
		_, err := fmt.Fprintln(w, warnColor.Sprint("no receivers found"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tADDRESS\tID")
	for _, r := range receivers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", okColor.Sprint(r.Name), r.Model, r.Address(), r.ID)
	}
	return tw.Flush()
}
