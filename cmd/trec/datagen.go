package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrzor/trec/internal/config"
	"github.com/mrzor/trec/internal/dataset"
	"github.com/mrzor/trec/internal/filter"
	"github.com/mrzor/trec/internal/store"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newDatagenCmd() *cobra.Command {
	cfg := &config.Datagen{}

	cmd := &cobra.Command{
		Use:   "datagen",
		Short: "Generate perf and fuzz datasets from recorded traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			rules, err := config.LoadRules(cfg.RulesFile)
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

			excluder, err := filter.NewExcluder(rules, logger)
			if err != nil {
				return fmt.Errorf("%w: %w", config.ErrMissing, err)
			}

			fsys := afero.NewOsFs()
			gen := dataset.NewGenerator(fsys, cfg.OutDir, excluder, logger).
				WithLoader(func(path string) (*dataset.File, error) {
					if strings.HasSuffix(path, ".db") {
						return loadDatabase(cmd.Context(), path)
					}
					return dataset.Load(fsys, path)
				})

			outputs, err := gen.GenerateAll(cfg.Files)
			for _, out := range outputs {
				fmt.Fprintf(cmd.OutOrStdout(), "perf dataset at %s\nfuzz dataset at %s\n", out.Perf, out.Fuzz)
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&cfg.Files, "files", "f", nil, "trace files (YAML, or SQLite with a .db extension)")
	cmd.Flags().StringVar(&cfg.OutDir, "out-dir", ".", "directory receiving the datasets")
	cmd.Flags().StringVar(&cfg.RulesFile, "rules", "", "YAML file overriding the exclusion rules")

	return cmd
}

func loadDatabase(ctx context.Context, path string) (*dataset.File, error) {
	db, err := store.OpenExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck // Read-only use

	return db.Load(ctx)
}
