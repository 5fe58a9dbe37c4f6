package eventprocessor

import (
	"fmt"

	"github.com/mrzor/trec/internal/bpf"
	"github.com/mrzor/trec/internal/metrics"
	"github.com/mrzor/trec/internal/record"

	"go.uber.org/zap"
)

// FragmentApplier receives decoded fragments. *correlator.Correlator implements it.
type FragmentApplier interface {
	Apply(f record.Fragment) error
}

// Processor decodes samples and forwards them to a FragmentApplier.
type Processor struct {
	applier FragmentApplier
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewProcessor creates a new event processor. A nil recorder or logger
// disables the corresponding reporting.
func NewProcessor(applier FragmentApplier, recorder metrics.Recorder, logger *zap.Logger) *Processor {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		applier: applier,
		metrics: recorder,
		logger:  logger,
	}
}

// HandleSample decodes one raw sample of the given kind and applies it.
func (p *Processor) HandleSample(kind record.Kind, raw []byte) error {
	fragment, err := bpf.Decode(kind, raw)
	if err != nil {
		p.metrics.ReportDecodeError(kind)
		return fmt.Errorf("decoding %s sample: %w", kind, err)
	}

	if isRaw(fragment) {
		p.metrics.ReportRawFragment(kind)
		p.logger.Debug("keeping non UTF-8 fragment as raw bytes",
			zap.Stringer("kind", kind),
			zap.Uint64("identity", uint64(fragment.FragmentIdentity())))
	}

	if err := p.applier.Apply(fragment); err != nil {
		return fmt.Errorf("applying %s fragment: %w", kind, err)
	}
	p.metrics.ReportFragment(kind)
	return nil
}

func isRaw(f record.Fragment) bool {
	switch f := f.(type) {
	case record.ArgumentFragment:
		return f.Raw
	case record.EnvironmentFragment:
		return f.Raw
	default:
		return false
	}
}
