// Package cmd wires the planforge command tree.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/log"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "planforge",
	Short: "Conversational build-plan forge",
	Long: `planforge turns an open-ended conversation into a structured, validated
BuildPlan for autonomous code-generation agents. It elicits requirements one
question at a time, refines the draft through bounded multi-role
deliberation, and delivers the finalized plan as a compressed artifact.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with a cancellable context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig loads configuration honoring the global flags and installs the
// default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := log.New(log.Config{
		Level:       log.ParseLevel(cfg.Log.Level),
		Format:      log.ParseFormat(cfg.Log.Format),
		Output:      os.Stderr,
		ServiceName: "planforge",
	})
	log.SetDefaultLogger(logger)
	return cfg, nil
}
