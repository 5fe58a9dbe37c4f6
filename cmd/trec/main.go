// trec records execve() activity during a package build and turns the
// captured invocations into performance and fuzzing datasets.
package main

import (
	"fmt"
	"os"

	"github.com/mrzor/trec/internal/config"
	"github.com/mrzor/trec/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "trec: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trec",
		Short:         "Trace execve() calls and generate datasets from them",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetHelpTemplate(`{{.UsageString}}`)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newRecordCmd(),
		newDatagenCmd(),
		newFuzzgenCmd(),
		newVersionCmd(),
	)
	return root
}

// setupLogger builds the logger from TREC_LOG_* and returns a cleanup that
// flushes it.
func setupLogger(env *config.Env) (*zap.Logger, func(), error) {
	logger, err := logging.New(logging.Options{
		Level:      env.LogLevel,
		File:       env.LogFile,
		MaxSizeMB:  64,
		MaxBackups: 3,
		MaxAgeDays: 7,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrMissing, err)
	}

	cleanup := func() {
		_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	}
	return logger, cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trec %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
