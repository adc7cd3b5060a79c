package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/obsched/app"
	"github.com/kilianp07/obsched/core/schedule"
	"github.com/kilianp07/obsched/pkg/export"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and edit the schedule",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the schedule in chronological order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			v, err := core.Schedule.View(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(v.Schedule) == 0 {
				printDim(out, "schedule is empty")
				return nil
			}
			loc := core.Contest.Location()
			now := time.Now().UnixMilli()
			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tOFFSET\tLENGTH\tNAME\tID")
			for _, e := range v.Schedule {
				name := e.Name
				switch {
				case e.StartMs <= now && now < e.StopMs:
					name = onAirColor.Sprint(name)
				case e.StopMs <= now:
					name = dimColor.Sprint(name)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					formatTime(e.StartMs, loc), formatOffset(e.StartMs-v.ContestTimestamp),
					formatLength(e.StopMs-e.StartMs), name, e.ID)
			}
			return tw.Flush()
		})
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <item-id>",
	Short: "Append a catalog item after the last scheduled entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			e, err := core.Schedule.Add(ctx, args[0])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "scheduled %s at %s (%s)", e.Name, formatTime(e.StartMs, core.Contest.Location()), e.ID)
			return nil
		})
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:     "remove <entry-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a schedule entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			removed, err := core.Schedule.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			if !removed {
				printWarn(cmd.OutOrStdout(), "no entry %s", args[0])
				return nil
			}
			printOK(cmd.OutOrStdout(), "removed %s", args[0])
			return nil
		})
	},
}

var scheduleMoveCmd = &cobra.Command{
	Use:   "move <entry-id> <when>",
	Short: "Change the start of a schedule entry",
	Long: `Change the start of a schedule entry. The time may be HH:MM (today), an
offset from the contest start such as +1h30m, an RFC 3339 timestamp or epoch
milliseconds.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			anchor, err := core.Contest.Anchor(ctx)
			if err != nil {
				return err
			}
			at, err := parseWhen(args[1], anchor, core.Contest.Location(), time.Now())
			if err != nil {
				return err
			}
			if _, err := core.Schedule.Reschedule(ctx, args[0], at); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "moved %s to %s", args[0], formatTime(at, core.Contest.Location()))
			return nil
		})
	},
}

var bulkMode string

var scheduleBulkCmd = &cobra.Command{
	Use:   "bulk <file|->",
	Short: "Merge a JSON list of entries into the schedule",
	Long: `Merge a JSON array of {"name", "start_timestamp"} objects into the
schedule. --mode selects what happens on overlap: skip drops the new entry,
overwrite removes the existing ones and shift moves the new entry past them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := schedule.ParseMode(bulkMode)
		if err != nil {
			return err
		}
		proposals, err := readProposals(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			merged, err := core.Schedule.Bulk(ctx, proposals, mode)
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "%d proposed, %d entries scheduled", len(proposals), len(merged))
			return nil
		})
	},
}

func readProposals(stdin io.Reader, path string) ([]schedule.Proposal, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var proposals []schedule.Proposal
	if err := json.NewDecoder(r).Decode(&proposals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return proposals, nil
}

var scheduleStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			st, err := core.Schedule.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), st, core.Contest.Location())
			return nil
		})
	},
}

var exportFormat string

var scheduleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the schedule as JSON or CSV to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			v, err := core.Schedule.View(ctx)
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), exportFormat, v, core.Contest.Location())
		})
	},
}

func init() {
	scheduleExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: "+strings.Join(export.Formats, ", "))
	scheduleBulkCmd.Flags().StringVarP(&bulkMode, "mode", "m", string(schedule.ModeSkip), "conflict mode: skip, overwrite or shift")
	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleRemoveCmd, scheduleMoveCmd, scheduleBulkCmd, scheduleStatsCmd, scheduleExportCmd)
	rootCmd.AddCommand(scheduleCmd)
}
