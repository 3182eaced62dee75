// Package cmd wires the flowbench CLI: suite evaluation, validation,
// scaffolding, and version reporting.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/flowbench/flowbench/internal/config"
	"github.com/flowbench/flowbench/internal/log"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string

	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "flowbench",
	Short: "Pipeline evaluation engine for agentic workflows",
	Long: `flowbench evaluates configurable multi-step pipelines: chains of
sandboxed code snippets, agent calls, and aggregations, run over sample
sets with bounded concurrency. Suites are YAML documents; results are
structured reports with per-step traces.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings(flagConfig)
		if err != nil {
			return err
		}

		if flagLogLevel != "" {
			settings.Log.Level = flagLogLevel
		}
		if flagLogFormat != "" {
			settings.Log.Format = flagLogFormat
		}

		cfg := log.DefaultConfig()
		cfg.Level = log.ParseLevel(settings.Log.Level)
		cfg.Format = log.ParseFormat(settings.Log.Format)
		cfg.Output = log.OutputStderr()
		log.SetDefaultLogger(log.New(cfg))

		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "settings file (default flowbench.yaml, ~/.flowbench/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format (text, json)")
}
