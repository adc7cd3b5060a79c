package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/obsched/app"
	corecatalog "github.com/kilianp07/obsched/core/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage videos and activities",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List videos and activities with their usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			videos, err := core.Catalog.Videos(ctx)
			if err != nil {
				return err
			}
			activities, err := core.Catalog.Activities(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printHeader(out, "Videos")
			if err := printUsage(cmd, videos); err != nil {
				return err
			}
			printHeader(out, "Activities")
			return printUsage(cmd, activities)
		})
	},
}

func printUsage(cmd *cobra.Command, items []corecatalog.Usage) error {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		printDim(out, "  none")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tLENGTH\tPLAYED\tUPCOMING\tID")
	for _, it := range items {
		length := formatLength(it.DurationMs)
		if it.DurationMs <= 0 {
			length = dimColor.Sprint("unknown")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%s\n", it.Name, length, len(it.PreviousOffsetsMs), len(it.FutureOffsetsMs), it.ID)
	}
	return tw.Flush()
}

var catalogAddCmd = &cobra.Command{
	Use:   "add-activity <name> <duration>",
	Short: "Add an activity; duration is minutes-seconds (5-30) or seconds",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			it, err := core.Catalog.AddActivity(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "added %s (%s) %s", it.Name, formatLength(it.DurationMs), it.ID)
			return nil
		})
	},
}

var catalogRenameCmd = &cobra.Command{
	Use:   "rename <item-id> <new-name>",
	Short: "Rename an item and every schedule entry referring to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			it, err := core.Catalog.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "renamed to %s", it.Name)
			return nil
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Delete an item and its schedule entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Catalog.Delete(ctx, args[0]); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "deleted %s", args[0])
			return nil
		})
	},
}

var catalogArchiveCmd = &cobra.Command{
	Use:   "archive <item-id>",
	Short: "Move a video to the archive directory and unschedule it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			path, err := core.Catalog.Archive(ctx, args[0])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "archived to %s", path)
			return nil
		})
	},
}

var rebuild bool

var catalogRescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Scan the video directory now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Catalog.Rescan(ctx, rebuild); err != nil {
				return err
			}
			items, err := core.Catalog.Items(ctx)
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "%d catalog items", len(items))
			return nil
		})
	},
}

func init() {
	catalogRescanCmd.Flags().BoolVar(&rebuild, "rebuild", false, "also drop videos whose files are gone")
	catalogCmd.AddCommand(catalogListCmd, catalogAddCmd, catalogRenameCmd, catalogDeleteCmd, catalogArchiveCmd, catalogRescanCmd)
	rootCmd.AddCommand(catalogCmd)
}
