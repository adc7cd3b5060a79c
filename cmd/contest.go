package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/obsched/app"
)

var contestCmd = &cobra.Command{
	Use:   "contest",
	Short: "Inspect or move the contest start",
}

var contestStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the contest start and what is on air",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			st, err := core.Contest.State(ctx)
			if err != nil {
				return err
			}
			air, err := core.Schedule.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			loc := core.Contest.Location()
			printField(out, "start", fmt.Sprintf("%s (%s)", formatTime(st.StartMs, loc), relative(st.StartMs, st.CurrentMs)))
			printField(out, "mode", modeLabel(st.Mode))
			printField(out, "on air", airLabel(air))
			return nil
		})
	},
}

var contestStartCmd = &cobra.Command{
	Use:   "start [when]",
	Short: "Move the contest start and shift the schedule with it",
	Long: `Move the contest start to now, or to the given time, and shift every
schedule entry by the same amount. The time may be HH:MM (today), an offset
from the current start such as +15m, an RFC 3339 timestamp or epoch
milliseconds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			var anchor int64
			var err error
			switch {
			case len(args) == 0:
				anchor, err = core.Contest.Start(ctx, nil)
			default:
				if h, m, ok := parseClock(args[0]); ok {
					anchor, err = core.Contest.StartAt(ctx, h, m)
					break
				}
				var current, at int64
				if current, err = core.Contest.Anchor(ctx); err != nil {
					return err
				}
				if at, err = parseWhen(args[0], current, core.Contest.Location(), time.Now()); err != nil {
					return err
				}
				anchor, err = core.Contest.Start(ctx, &at)
			}
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "contest starts %s", formatTime(anchor, core.Contest.Location()))
			return nil
		})
	},
}

func init() {
	contestCmd.AddCommand(contestStatusCmd, contestStartCmd)
	rootCmd.AddCommand(contestCmd)
}
