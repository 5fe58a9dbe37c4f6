package correlator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mrzor/trec/internal/record"

	"go.uber.org/zap"
)

// Correlator maps identities to the records being accumulated for them.
type Correlator struct {
	mu      sync.Mutex
	records map[record.Identity]*record.TraceRecord
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithClock replaces time.Now for FirstSeen/LastSeen bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// WithLogger sets the logger used for discard and eviction messages.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Correlator) { c.logger = logger }
}

// New creates an empty correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{
		records: make(map[record.Identity]*record.TraceRecord),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getOrCreate returns the record for id, creating it if needed. Caller holds mu.
func (c *Correlator) getOrCreate(id record.Identity, kind record.Kind) *record.TraceRecord {
	now := c.now()
	r, ok := c.records[id]
	if !ok {
		r = record.New(id, kind, now)
		c.records[id] = r
		return r
	}
	r.LastSeen = now
	return r
}

// ApplyBasic sets caller, callee and status flags, overwriting earlier values.
func (c *Correlator) ApplyBasic(id record.Identity, caller, callee string, flags uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.getOrCreate(id, record.KindBasic)
	r.Caller = caller
	r.Callee = callee
	r.Flags = flags
}

// ApplyArgument appends one argv entry. text is stored byte-for-byte.
func (c *Correlator) ApplyArgument(id record.Identity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.getOrCreate(id, record.KindArg)
	r.Args = append(r.Args, text)
}

// ApplyEnvironment appends one envp entry. text is stored byte-for-byte.
func (c *Correlator) ApplyEnvironment(id record.Identity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.getOrCreate(id, record.KindEnv)
	r.Envs = append(r.Envs, text)
}

// ApplyPathSegment appends one working directory component.
func (c *Correlator) ApplyPathSegment(id record.Identity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.getOrCreate(id, record.KindPathPart)
	r.PathParts = append(r.PathParts, text)
}

// Apply dispatches a decoded fragment to the matching Apply* operation.
func (c *Correlator) Apply(f record.Fragment) error {
	switch f := f.(type) {
	case record.BasicFragment:
		c.ApplyBasic(f.Identity, f.Caller, f.Callee, f.Flags)
	case record.ArgumentFragment:
		c.ApplyArgument(f.Identity, f.Text)
	case record.EnvironmentFragment:
		c.ApplyEnvironment(f.Identity, f.Text)
	case record.PathSegmentFragment:
		c.ApplyPathSegment(f.Identity, f.Text)
	default:
		return fmt.Errorf("unsupported fragment type %T", f)
	}
	return nil
}

// Get returns the record for id, or nil.
func (c *Correlator) Get(id record.Identity) *record.TraceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[id]
}

// Len returns the number of in-flight records.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Drain empties the table and returns the records satisfying pred, ordered by
// first arrival. Records failing pred are dropped.
func (c *Correlator) Drain(pred func(*record.TraceRecord) bool) []*record.TraceRecord {
	c.mu.Lock()
	all := c.records
	c.records = make(map[record.Identity]*record.TraceRecord)
	c.mu.Unlock()

	kept := make([]*record.TraceRecord, 0, len(all))
	for id, r := range all {
		if pred(r) {
			kept = append(kept, r)
			continue
		}
		c.logger.Debug("discarding trace record",
			zap.Uint64("identity", uint64(id)),
			zap.Stringer("origin", r.Origin),
			zap.String("missing", r.Missing()))
	}

	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].FirstSeen.Equal(kept[j].FirstSeen) {
			return kept[i].FirstSeen.Before(kept[j].FirstSeen)
		}
		return kept[i].Identity < kept[j].Identity
	})

	return kept
}

// Evict removes records that have not received a fragment for longer than
// maxAge and returns how many were removed. A zero maxAge disables eviction.
func (c *Correlator) Evict(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for id, r := range c.records {
		if now.Sub(r.LastSeen) > maxAge {
			delete(c.records, id)
			evicted++
		}
	}

	if evicted > 0 {
		c.logger.Debug("evicted stale trace records", zap.Int("count", evicted), zap.Duration("max_age", maxAge))
	}
	return evicted
}
