package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/mj1618/user-routine/internal/config"
	"github.com/mj1618/user-routine/internal/observability"
	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/version"
)

var (
	// appConfig is loaded by the root command before any subcommand runs.
	appConfig *config.Config

	// stderr carries logs and the console presenter. It switches to CRLF
	// line endings while the terminal is in raw mode for keyboard controls.
	stderr = newCRLFWriter(os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:   "user-routine",
	Short: "Replay scripted user actions against a web page",
	Long: `Replay a routine of user actions (click, fill, await, nav ...) against a
live page and report what happened, step by step.

Routines run against a browser driven by chromedp or rod, or against a static
HTML file for quick checks. The same runner is exposed to agents over MCP with
the serve command.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.SetErr(stderr)
	err := rootCmd.Execute()
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./user-routine.yaml)")
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console, json")
	rootCmd.PersistentFlags().String("log-file", "", "Also write json logs to this file, rotated")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		file, _ := rootCmd.PersistentFlags().GetString("config")
		cfg, err := config.Load(v, file)
		if err != nil {
			return err
		}
		observability.Initialize(cfg.Logger, zapcore.AddSync(stderr))
		appConfig = cfg

		// Use the root persistent flag directly so subcommands may define
		// their own --format.
		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")
		return nil
	}
}
