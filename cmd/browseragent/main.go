// Package main implements the browseragent CLI: a thin cobra runner that
// wires config, browser, chatmodel, and pipeline into a single `run`
// subcommand, emitting AgentEvents to stderr as the task progresses.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	debug      bool
	cfgPath    string
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "browseragent",
	Short: "browseragent drives a browser through a task with an LLM-orchestrated agent loop",
	Long: `browseragent runs a Planner/Navigator/Validator agent loop against a
real browser session, dispatching a fixed catalog of DOM actions and
stopping when the task is done, fails, is cancelled, or runs out of steps.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file (optional)")

	runCmd.Flags().StringVar(&runURL, "url", "about:blank", "Starting URL for the browser session")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "Run the browser headless")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Override the configured step budget (0 keeps the config/default value)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Chat model provider (anthropic, openai, gemini, xai, zai, openrouter); default auto-detects from the environment")
	runCmd.Flags().DurationVar(&runGrace, "cancel-grace", 300*time.Millisecond, "Grace period before cancellation hard-stops in-flight model/browser calls")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
