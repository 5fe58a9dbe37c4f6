package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrzor/trec/internal/attributes"
	"github.com/mrzor/trec/internal/bpfloader"
	"github.com/mrzor/trec/internal/config"
	"github.com/mrzor/trec/internal/correlator"
	"github.com/mrzor/trec/internal/dataset"
	"github.com/mrzor/trec/internal/eventprocessor"
	"github.com/mrzor/trec/internal/eventstream"
	"github.com/mrzor/trec/internal/metrics"
	"github.com/mrzor/trec/internal/otel"
	"github.com/mrzor/trec/internal/output"
	"github.com/mrzor/trec/internal/record"
	"github.com/mrzor/trec/internal/store"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func newRecordCmd() *cobra.Command {
	cfg := &config.Record{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture execve() calls until interrupted and save the complete ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.ParseEnv()
			if err != nil {
				return err
			}
			if cfg.ObjectPath == "" {
				cfg.ObjectPath = env.BPFObject
			}
			if !cmd.Flags().Changed("evict-after") {
				cfg.EvictAfter = env.EvictAfter
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(env)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRecord(cmd.Context(), cfg, env, logger)
		},
	}

	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "output file (.db selects SQLite, anything else YAML)")
	cmd.Flags().StringVarP(&cfg.Package, "package", "p", "", "package being built")
	cmd.Flags().StringVarP(&cfg.Version, "version", "V", "", "version of the package being built")
	cmd.Flags().StringVar(&cfg.ObjectPath, "object", "", "compiled BPF object (default $TREC_BPF_OBJECT)")
	cmd.Flags().DurationVar(&cfg.EvictAfter, "evict-after", 0, "drop records idle for this long (0 keeps everything)")

	return cmd
}

// setupBPF loads the BPF program, attaches the tracepoint and opens the ring
// buffers. Returns the stream sources and a cleanup function.
func setupBPF(objectPath string, logger *zap.Logger) ([]eventstream.Source, func(), error) {
	loader, err := bpfloader.New(objectPath)
	if err != nil {
		return nil, nil, err
	}

	if err := loader.Attach(); err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			logger.Error("closing loader after attach failure", zap.Error(closeErr))
		}
		return nil, nil, err
	}

	sources, err := loader.OpenRingBuffers()
	if err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			logger.Error("closing loader after ring buffer open failure", zap.Error(closeErr))
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := loader.Close(); err != nil {
			logger.Error("closing loader", zap.Error(err))
		}
	}

	return sources, cleanup, nil
}

// setupMetrics starts the /metrics endpoint when an address is configured.
func setupMetrics(ctx context.Context, addr string, logger *zap.Logger) *metrics.Prometheus {
	prom := metrics.NewPrometheus()
	if addr == "" {
		return prom
	}

	go func() {
		if err := prom.Serve(ctx, addr, logger); err != nil {
			logger.Error("metrics endpoint stopped", zap.Error(err))
		}
	}()
	return prom
}

func runRecord(parent context.Context, cfg *config.Record, env *config.Env, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spans, err := newSpanSetup(cfg, env, logger)
	if err != nil {
		return err
	}

	prom := setupMetrics(ctx, env.MetricsAddr, logger)

	sources, cleanupBPF, err := setupBPF(cfg.ObjectPath, logger)
	if err != nil {
		return err
	}
	defer cleanupBPF()

	corr := correlator.New(correlator.WithLogger(logger))
	processor := eventprocessor.NewProcessor(corr, prom, logger)
	stream := eventstream.New(sources, processor,
		eventstream.WithLogger(logger),
		eventstream.WithMetrics(prom),
		eventstream.WithEviction(corr, cfg.EvictAfter),
	)

	logger.Info("recording execve() calls, interrupt to stop",
		zap.String("package", cfg.Package),
		zap.String("version", cfg.Version))

	if err := stream.Run(ctx); err != nil {
		return fmt.Errorf("running event stream: %w", err)
	}

	total := corr.Len()
	records := corr.Drain((*record.TraceRecord).Eligible)
	for _, r := range records {
		r.Finalize()
	}
	prom.ReportDrained(len(records), total-len(records))
	logger.Info("capture stopped",
		zap.Int("records", len(records)),
		zap.Int("discarded", total-len(records)))

	// Signal context is done; persisting uses a fresh one.
	saveCtx := context.WithoutCancel(parent)
	f := &dataset.File{Package: cfg.Package, Version: cfg.Version, Data: records}
	if err := save(saveCtx, cfg, f); err != nil {
		return err
	}
	logger.Info("saved trace records", zap.String("path", cfg.Output))

	return spans.export(saveCtx, cfg, records, logger)
}

func save(ctx context.Context, cfg *config.Record, f *dataset.File) error {
	if !cfg.UsesSQLite() {
		return f.Save(afero.NewOsFs(), cfg.Output)
	}

	db, err := store.Open(cfg.Output)
	if err != nil {
		return err
	}
	if err := db.Save(ctx, f); err != nil {
		_ = db.Close() //nolint:errcheck // Already failing
		return err
	}
	return db.Close()
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup
// function. A nil tracer means span export is disabled.
func setupOTEL(ctx context.Context, logger *zap.Logger) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}
	if !otelCfg.Enabled() {
		return nil, func() {}, nil
	}

	tp, err := otel.InitProvider(ctx, otelCfg, version, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			logger.Error("shutting down OTEL provider", zap.Error(err))
		}
	}

	return tp.Tracer("trec"), cleanup, nil
}

// spanSetup holds span export settings validated before capture starts.
type spanSetup struct {
	evaluator *attributes.Evaluator
	session   trace.SpanContext
}

func newSpanSetup(cfg *config.Record, env *config.Env, logger *zap.Logger) (*spanSetup, error) {
	customAttrs, err := config.ParseCustomAttributes(env.SpanAttributes)
	if err != nil {
		return nil, fmt.Errorf("%w: TREC_SPAN_ATTRIBUTES: %w", config.ErrMissing, err)
	}
	evaluator, err := attributes.NewEvaluator(customAttrs, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: TREC_SPAN_ATTRIBUTES: %w", config.ErrMissing, err)
	}

	sessionValue := env.TraceID
	if sessionValue == "" {
		sessionValue = attributes.SessionName(cfg.Package, cfg.Version)
	}
	session, hashed := attributes.SessionSpanContext(sessionValue)
	if hashed && env.TraceID != "" {
		logger.Warn("TREC_TRACE_ID is not a 32-char hex trace ID, hashing it", zap.String("value", env.TraceID))
	}

	return &spanSetup{evaluator: evaluator, session: session}, nil
}

func (s *spanSetup) export(ctx context.Context, cfg *config.Record, records []*record.TraceRecord, logger *zap.Logger) error {
	tracer, cleanup, err := setupOTEL(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if tracer == nil {
		return nil
	}

	n := output.NewSpanExporter(tracer, s.session, s.evaluator, logger).Export(ctx, cfg.Package, cfg.Version, records)
	logger.Info("exported spans", zap.Int("count", n), zap.Stringer("trace_id", s.session.TraceID()))
	return nil
}
