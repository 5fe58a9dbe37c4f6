// Package eventstream pumps samples from several ring buffers into a single
// consumer.
//
// Each source gets its own reader goroutine. Samples from one ring buffer keep
// their order; samples from different ring buffers interleave arbitrarily.
// Cancelling the context closes every reader, which unblocks the goroutines,
// and Run returns once samples already queued have been handled.
package eventstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mrzor/trec/internal/metrics"
	"github.com/mrzor/trec/internal/record"

	"github.com/cilium/ebpf/ringbuf"
	"go.uber.org/zap"
)

// Reader is the subset of *ringbuf.Reader used by the stream.
type Reader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// Source pairs a reader with the fragment kind it carries.
type Source struct {
	Kind   record.Kind
	Reader Reader
}

// Handler consumes one raw sample.
type Handler interface {
	HandleSample(kind record.Kind, raw []byte) error
}

// Evictor drops stale in-flight records. *correlator.Correlator implements it.
type Evictor interface {
	Evict(maxAge time.Duration) int
	Len() int
}

type sample struct {
	kind record.Kind
	raw  []byte
}

// Stream reads from every source and dispatches samples to a handler.
type Stream struct {
	sources []Source
	handler Handler

	evictor    Evictor
	evictAfter time.Duration
	tick       time.Duration
	queueSize  int
	metrics    metrics.Recorder
	logger     *zap.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the logger for read and handler errors.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stream) { s.logger = logger }
}

// WithMetrics reports evictions and the in-flight gauge to recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Stream) { s.metrics = recorder }
}

// WithEviction enables periodic housekeeping on evictor. Records idle for
// longer than maxAge are dropped; a zero maxAge only refreshes the gauge.
func WithEviction(evictor Evictor, maxAge time.Duration) Option {
	return func(s *Stream) {
		s.evictor = evictor
		s.evictAfter = maxAge
	}
}

// WithTickInterval sets how often housekeeping runs.
func WithTickInterval(d time.Duration) Option {
	return func(s *Stream) { s.tick = d }
}

// New creates a Stream over sources delivering to handler.
func New(sources []Source, handler Handler, opts ...Option) *Stream {
	s := &Stream{
		sources:   sources,
		handler:   handler,
		tick:      time.Second,
		queueSize: 4096,
		metrics:   metrics.Nop{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled or every reader is closed.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.sources) == 0 {
		return errors.New("no ring buffer sources")
	}

	samples := make(chan sample, s.queueSize)

	var wg sync.WaitGroup
	for _, src := range s.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			s.pump(ctx, src, samples)
		}(src)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.closeReaders()
		case <-stop:
		}
	}()

	go func() {
		wg.Wait()
		close(samples)
	}()

	var tickC <-chan time.Time
	if s.evictor != nil && s.tick > 0 {
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case smp, ok := <-samples:
			if !ok {
				return nil
			}
			if err := s.handler.HandleSample(smp.kind, smp.raw); err != nil {
				s.logger.Debug("dropping sample", zap.Stringer("kind", smp.kind), zap.Error(err))
			}
		case <-tickC:
			s.housekeep()
		}
	}
}

// pump forwards samples from one reader until it is closed.
func (s *Stream) pump(ctx context.Context, src Source, out chan<- sample) {
	for {
		rec, err := src.Reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("reading from ring buffer", zap.Stringer("kind", src.Kind), zap.Error(err))
			continue
		}

		// A sample already taken from the kernel is always delivered; the
		// consumer keeps receiving until every pump has returned.
		out <- sample{kind: src.Kind, raw: rec.RawSample}
	}
}

func (s *Stream) closeReaders() {
	for _, src := range s.sources {
		if err := src.Reader.Close(); err != nil {
			s.logger.Warn("closing ring buffer reader", zap.Stringer("kind", src.Kind), zap.Error(err))
		}
	}
}

func (s *Stream) housekeep() {
	if n := s.evictor.Evict(s.evictAfter); n > 0 {
		s.metrics.ReportEvicted(n)
	}
	s.metrics.SetInFlight(s.evictor.Len())
}
