package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/obsched/app"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates"},
	Short:   "Save and restore schedule templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			names, err := core.Contest.Templates(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				printDim(out, "no templates")
			}
			for _, n := range names {
				printLine(out, n)
			}
			return nil
		})
	},
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current schedule as a new template version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			v, err := core.Contest.SaveTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "saved %s version %d", args[0], v)
			return nil
		})
	},
}

var templateLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Replace the schedule with the latest version of a template, moved to today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			anchor, err := core.Contest.LoadTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "loaded %s, contest starts %s", args[0], formatTime(anchor, core.Contest.Location()))
			return nil
		})
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateSaveCmd, templateLoadCmd)
	rootCmd.AddCommand(templateCmd)
}
