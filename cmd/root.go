// Package cmd implements the obsched command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/obsched/app"
	"github.com/kilianp07/obsched/config"
	"github.com/kilianp07/obsched/infra/logger"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "obsched",
	Short:        "OBS playback scheduler",
	SilenceUsage: true,
	RunE:         run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and playback loop",
	RunE:  run,
}

func init() {
	rootCmd.PersistentPreRunE = loadConfig
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (empty for defaults and environment only)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig(cmd *cobra.Command, _ []string) error {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	opts := logger.Options{Level: c.Logging.Level, Format: c.Logging.Format}
	if cmd != rootCmd && cmd != serveCmd {
		// keep stdout for command output
		opts.Out = cmd.ErrOrStderr()
	}
	logger.Configure(opts)
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// withCore opens the store and services for a one-shot command.
func withCore(cmd *cobra.Command, f func(ctx context.Context, core *app.Core) error) error {
	core, err := app.OpenCore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.New("cli").Warnf("store close: %v", err)
		}
	}()
	return f(cmd.Context(), core)
}
