package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesedan/sentimen/config"
	"github.com/spacesedan/sentimen/internal/logging"
)

var (
	cfg      config.Config
	logLevel string
	asJSON   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sentimen",
		Short: "Indonesian product review sentiment analysis",
		Long: `Normalizes Indonesian marketplace reviews and classifies them as
negative, neutral or positive with the configured model artifacts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(config.Env())
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logging.InitLogger(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(lexiconCmd())
	rootCmd.AddCommand(fetchCorpusCmd())
	rootCmd.AddCommand(fetchModelCmd())
	return rootCmd
}
