package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// rootFlags carries global flag values into subcommands.
type rootFlags struct {
	configPath string
	logLevel   string
}

func buildRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "vividd",
		Short:         "AI video generation daemon: credit-gated tasks over cached model artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	root.AddCommand(buildServeCmd(flags))
	root.AddCommand(buildModelsCmd(flags))
	root.AddCommand(buildCreditsCmd(flags))
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
