package main

import (
	"fmt"
	"time"

	"github.com/mrzor/trec/internal/argclass"
	"github.com/mrzor/trec/internal/config"
	"github.com/mrzor/trec/internal/dataset"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFuzzgenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuzzgen PKG VERSION EXE [ARGS...]",
		Short: "Classify one invocation's arguments into a fuzzing seed",
		Long: `Classify the arguments following EXE and write a fuzz dataset under
$TREC_PERF_DIR/fuzz. Regular files named on the command line are copied
into $TREC_PERF_DIR/fuzz/files.`,
		// Everything after EXE belongs to the traced program.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ParseFuzzgen(args)
			if err != nil {
				return err
			}

			env, err := config.ParseEnv()
			if err != nil {
				return err
			}
			logger, cleanup, err := setupLogger(env)
			if err != nil {
				return err
			}
			defer cleanup()

			fsys := afero.NewOsFs()
			corpus := dataset.CorpusDir(cfg.PerfDir)
			if err := fsys.MkdirAll(corpus, 0o755); err != nil {
				logger.Warn("failed to create corpus directory", zap.String("dir", corpus), zap.Error(err))
			}

			classifier := argclass.New(fsys, corpus, logger)
			entry := dataset.NewFuzzEntry(cfg.Package, cfg.Version, cfg.Exe, cfg.Args, classifier)

			path := dataset.FuzzEntryPath(cfg.PerfDir, time.Now())
			if err := dataset.WriteFuzzEntry(fsys, path, entry); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "fuzz dataset at %s\n", path)
			return nil
		},
	}
}
