package correlator

import (
	"sync"
	"testing"
	"time"

	"github.com/mrzor/trec/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func eligible(r *record.TraceRecord) bool { return r.Eligible() }

func TestCorrelator_FirstFragmentCreatesRecord(t *testing.T) {
	c := New()

	c.ApplyArgument(1, "ls")

	r := c.Get(1)
	require.NotNil(t, r)
	assert.Equal(t, record.Identity(1), r.Identity)
	assert.Equal(t, record.KindArg, r.Origin)
	assert.Equal(t, []string{"ls"}, r.Args)
	assert.Equal(t, 1, c.Len())
}

func TestCorrelator_SameInstanceAcrossFragments(t *testing.T) {
	c := New()

	c.ApplyPathSegment(1, "tmp")
	first := c.Get(1)
	c.ApplyBasic(1, "bash", "/bin/ls", 0)
	c.ApplyEnvironment(1, "A=1")

	assert.Same(t, first, c.Get(1))
	assert.Equal(t, record.KindPathPart, first.Origin)
	assert.Equal(t, 1, c.Len())
}

func TestCorrelator_BasicOverwrites(t *testing.T) {
	c := New()

	c.ApplyBasic(1, "sh", "./a", 1)
	c.ApplyBasic(1, "make", "./b", 4)

	r := c.Get(1)
	assert.Equal(t, "make", r.Caller)
	assert.Equal(t, "./b", r.Callee)
	assert.Equal(t, uint32(4), r.Flags)
}

func TestCorrelator_PreservesOrderAcrossInterleaving(t *testing.T) {
	c := New()

	c.ApplyArgument(1, "cc")
	c.ApplyArgument(2, "ld")
	c.ApplyEnvironment(2, "X=1")
	c.ApplyArgument(1, "-c")
	c.ApplyPathSegment(1, "usr")
	c.ApplyArgument(2, "-o")
	c.ApplyEnvironment(1, "PATH=/bin")
	c.ApplyPathSegment(2, "tmp")
	c.ApplyPathSegment(1, "home")
	c.ApplyArgument(1, "main.c")
	c.ApplyPathSegment(1, "alice")
	c.ApplyEnvironment(1, "HOME=/root")

	r1 := c.Get(1)
	assert.Equal(t, []string{"cc", "-c", "main.c"}, r1.Args)
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root"}, r1.Envs)
	assert.Equal(t, []string{"usr", "home", "alice"}, r1.PathParts)

	r2 := c.Get(2)
	assert.Equal(t, []string{"ld", "-o"}, r2.Args)
	assert.Equal(t, []string{"X=1"}, r2.Envs)
	assert.Equal(t, []string{"tmp"}, r2.PathParts)

	r1.Finalize()
	assert.Equal(t, "/alice/home/usr", r1.WorkingDir())
}

func TestCorrelator_RawBytesKept(t *testing.T) {
	c := New()

	c.ApplyArgument(1, "\xff\xfe")
	c.ApplyEnvironment(1, "K=\xc0")

	r := c.Get(1)
	assert.Equal(t, []string{"\xff\xfe"}, r.Args)
	assert.Equal(t, []string{"K=\xc0"}, r.Envs)
}

func TestCorrelator_Apply(t *testing.T) {
	c := New()

	frags := []record.Fragment{
		record.EnvironmentFragment{Identity: 3, Text: "A=b"},
		record.ArgumentFragment{Identity: 3, Text: "prog"},
		record.PathSegmentFragment{Identity: 3, Text: "work"},
		record.BasicFragment{Identity: 3, Caller: "sh", Callee: "prog", Flags: 2},
	}
	for _, f := range frags {
		require.NoError(t, c.Apply(f))
	}

	r := c.Get(3)
	assert.True(t, r.Eligible())
	assert.Equal(t, record.KindEnv, r.Origin)
	assert.True(t, r.Decoded().FailEnv)
}

type bogusFragment struct{}

func (bogusFragment) FragmentIdentity() record.Identity { return 0 }
func (bogusFragment) FragmentKind() record.Kind         { return record.KindUnknown }

func TestCorrelator_ApplyUnknownFragment(t *testing.T) {
	c := New()
	assert.Error(t, c.Apply(bogusFragment{}))
	assert.Equal(t, 0, c.Len())
}

func TestCorrelator_Drain(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	c := New(WithClock(clock.now))

	// complete, arrives second
	clock.advance(time.Second)
	c.ApplyBasic(20, "make", "./app", 0)
	c.ApplyArgument(20, "./app")
	c.ApplyPathSegment(20, "src")

	// missing path segments
	c.ApplyBasic(30, "make", "./tool", 0)
	c.ApplyArgument(30, "./tool")

	// complete, arrives later but with a lower identity
	clock.advance(time.Second)
	c.ApplyArgument(10, "./x")
	c.ApplyPathSegment(10, "b")
	c.ApplyBasic(10, "sh", "./x", 0)

	drained := c.Drain(eligible)

	require.Len(t, drained, 2)
	assert.Equal(t, record.Identity(20), drained[0].Identity)
	assert.Equal(t, record.Identity(10), drained[1].Identity)
	assert.Equal(t, 0, c.Len(), "table must be empty after drain")
	assert.Nil(t, c.Get(30))
}

func TestCorrelator_DrainEmpty(t *testing.T) {
	c := New()
	assert.Empty(t, c.Drain(eligible))
}

func TestCorrelator_FragmentAfterDrainStartsFresh(t *testing.T) {
	c := New()
	c.ApplyArgument(1, "a")
	_ = c.Drain(eligible)

	c.ApplyArgument(1, "b")
	assert.Equal(t, []string{"b"}, c.Get(1).Args)
}

func TestCorrelator_Evict(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(WithClock(clock.now))

	c.ApplyArgument(1, "old")
	clock.advance(10 * time.Second)
	c.ApplyArgument(2, "fresh")
	clock.advance(2 * time.Second)

	assert.Equal(t, 0, c.Evict(0), "zero max age disables eviction")
	assert.Equal(t, 1, c.Evict(5*time.Second))
	assert.Nil(t, c.Get(1))
	assert.NotNil(t, c.Get(2))
}

func TestCorrelator_EvictUsesLastSeen(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(WithClock(clock.now))

	c.ApplyArgument(1, "a")
	clock.advance(10 * time.Second)
	c.ApplyArgument(1, "b")
	clock.advance(time.Second)

	assert.Equal(t, 0, c.Evict(5*time.Second))
	assert.Equal(t, time.Unix(0, 0), c.Get(1).FirstSeen)
	assert.Equal(t, time.Unix(10, 0), c.Get(1).LastSeen)
}

func TestCorrelator_ConcurrentIdentities(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id record.Identity) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.ApplyArgument(id, "x")
			}
		}(record.Identity(w))
	}
	wg.Wait()

	for w := 0; w < 4; w++ {
		assert.Len(t, c.Get(record.Identity(w)).Args, 100)
	}
}
