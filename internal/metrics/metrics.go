// Package metrics exposes Prometheus counters for the record pipeline.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mrzor/trec/internal/record"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const kindLabel = "kind"

// Recorder receives pipeline events worth counting.
type Recorder interface {
	ReportFragment(kind record.Kind)
	ReportRawFragment(kind record.Kind)
	ReportDecodeError(kind record.Kind)
	ReportDrained(kept, discarded int)
	ReportEvicted(n int)
	SetInFlight(n int)
}

var (
	_ Recorder = (*Prometheus)(nil)
	_ Recorder = Nop{}
)

// Nop discards every report.
type Nop struct{}

func (Nop) ReportFragment(record.Kind)    {}
func (Nop) ReportRawFragment(record.Kind) {}
func (Nop) ReportDecodeError(record.Kind) {}
func (Nop) ReportDrained(int, int)        {}
func (Nop) ReportEvicted(int)             {}
func (Nop) SetInFlight(int)               {}

// Prometheus implements Recorder on a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	fragments    *prometheus.CounterVec
	raw          *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	drained      prometheus.Counter
	discarded    prometheus.Counter
	evicted      prometheus.Counter
	inFlight     prometheus.Gauge
}

// NewPrometheus registers the trec collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		fragments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trec_fragments_total",
			Help: "The total number of fragments applied, by ring buffer",
		}, []string{kindLabel}),
		raw: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trec_fragments_raw_total",
			Help: "The total number of argument and environment fragments that were not valid UTF-8",
		}, []string{kindLabel}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trec_decode_errors_total",
			Help: "The total number of ring buffer samples that could not be decoded",
		}, []string{kindLabel}),
		drained: factory.NewCounter(prometheus.CounterOpts{
			Name: "trec_records_drained_total",
			Help: "The total number of eligible records harvested at shutdown",
		}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "trec_records_discarded_total",
			Help: "The total number of incomplete records dropped at shutdown",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "trec_records_evicted_total",
			Help: "The total number of stale records evicted before shutdown",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trec_records_in_flight",
			Help: "Records currently being accumulated",
		}),
	}
}

func (p *Prometheus) ReportFragment(kind record.Kind) {
	p.fragments.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) ReportRawFragment(kind record.Kind) {
	p.raw.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) ReportDecodeError(kind record.Kind) {
	p.decodeErrors.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) ReportDrained(kept, discarded int) {
	p.drained.Add(float64(kept))
	p.discarded.Add(float64(discarded))
}

func (p *Prometheus) ReportEvicted(n int) {
	p.evicted.Add(float64(n))
}

func (p *Prometheus) SetInFlight(n int) {
	p.inFlight.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics on %s: %w", addr, err)
	}
	return nil
}
