package dataset

import (
	"github.com/mrzor/trec/internal/record"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/facette/natsort"
	"go.uber.org/zap"
)

// Excluder decides whether a record is build noise. *filter.Excluder
// implements it.
type Excluder interface {
	Excluded(r *record.TraceRecord) (bool, string)
}

// Result holds the datasets derived from one batch of records.
type Result struct {
	Perf []string
	Fuzz []FuzzEntry
}

// Analyze keeps eligible, non-excluded records and collects their resolved
// callee paths. Perf is deduplicated and naturally sorted. Batched traces
// never contribute fuzz entries. records are not modified beyond working
// directory assembly.
func Analyze(records []*record.TraceRecord, excluder Excluder, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}

	perf := mapset.NewThreadUnsafeSet[string]()
	for _, r := range records {
		if missing := r.Missing(); missing != "" {
			logger.Debug("skipping incomplete record",
				zap.Uint64("identity", uint64(r.Identity)),
				zap.String("missing", missing))
			continue
		}

		if excluder != nil {
			if excluded, reason := excluder.Excluded(r); excluded {
				logger.Debug("excluding record",
					zap.String("callee", r.ResolvedCallee()),
					zap.String("rule", reason))
				continue
			}
		}

		perf.Add(r.ResolvedCallee())
	}

	paths := perf.ToSlice()
	natsort.Sort(paths)

	return Result{
		Perf: paths,
		Fuzz: []FuzzEntry{},
	}
}
