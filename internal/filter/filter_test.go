package filter

import (
	"testing"

	"github.com/mrzor/trec/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(callee string, cwdParts ...string) *record.TraceRecord {
	r := &record.TraceRecord{
		Caller:    "make",
		Callee:    callee,
		Args:      []string{callee},
		PathParts: cwdParts,
	}
	r.Finalize()
	return r
}

func defaultExcluder(t *testing.T) *Excluder {
	t.Helper()
	e, err := NewExcluder(DefaultRules(), nil)
	require.NoError(t, err)
	return e
}

func TestExcluded_Defaults(t *testing.T) {
	e := defaultExcluder(t)

	tests := []struct {
		name   string
		r      *record.TraceRecord
		want   bool
		reason string
	}{
		{name: "system binary", r: rec("/usr/bin/ls"), want: true, reason: "prefix /usr/"},
		{name: "project binary", r: rec("/home/alice/build/myapp"), want: false},
		{name: "configure probe", r: rec("./configure", "pkg", "src"), want: true, reason: "suffix ./configure"},
		{name: "conftest", r: rec("./conftest", "pkg"), want: true, reason: "suffix ./conftest"},
		{name: "shell script", r: rec("/home/u/run.sh"), want: true, reason: "suffix .sh"},
		{name: "harness marker", r: rec("/home/u/./exec.cmd/step"), want: true, reason: "infix ./exec.cmd"},
		{name: "relative project binary", r: rec("build/app", "alice", "home"), want: false},
		{name: "relative under tmp", r: rec("x", "tmp"), want: true, reason: "prefix /tmp/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := e.Excluded(tt.r)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestExcluded_IndependentOfEligibility(t *testing.T) {
	e := defaultExcluder(t)

	r := &record.TraceRecord{Callee: "/usr/bin/cc"}
	excluded, _ := e.Excluded(r)
	assert.True(t, excluded)
	assert.False(t, r.Eligible())
}

func TestExcluded_LeavesEligibilityUntouched(t *testing.T) {
	e := defaultExcluder(t)

	r := &record.TraceRecord{Caller: "make", Callee: "./tool", Args: []string{"./tool"}}
	require.Equal(t, "working_dir", r.Missing())

	excluded, _ := e.Excluded(r)
	assert.False(t, excluded)
	assert.False(t, r.Eligible())
	assert.Equal(t, "working_dir", r.Missing())
	assert.False(t, r.Assembled())

	r.PathParts = []string{"src", "home"}
	assert.Equal(t, "/home/src/./tool", r.ResolvedCallee())
}

func TestExcluded_EmptyRules(t *testing.T) {
	e, err := NewExcluder(Rules{}, nil)
	require.NoError(t, err)

	excluded, _ := e.Excluded(rec("/usr/bin/ls"))
	assert.False(t, excluded)
}

func TestExcluded_Expressions(t *testing.T) {
	e, err := NewExcluder(Rules{
		Expressions: []string{
			`caller == "cmake"`,
			`any(args, {# == "--version"})`,
		},
	}, nil)
	require.NoError(t, err)

	r := rec("/home/u/app")
	r.Caller = "cmake"
	excluded, reason := e.Excluded(r)
	assert.True(t, excluded)
	assert.Equal(t, `expression caller == "cmake"`, reason)

	r = rec("/home/u/app")
	r.Args = []string{"app", "--version"}
	excluded, _ = e.Excluded(r)
	assert.True(t, excluded)

	excluded, _ = e.Excluded(rec("/home/u/app"))
	assert.False(t, excluded)
}

func TestExcluded_ExpressionSeesResolvedCallee(t *testing.T) {
	e, err := NewExcluder(Rules{
		Expressions: []string{`callee startsWith "/work/" && raw_callee == "bin/x"`},
	}, nil)
	require.NoError(t, err)

	excluded, _ := e.Excluded(rec("bin/x", "work"))
	assert.True(t, excluded)
}

func TestExcluded_RuntimeErrorDoesNotExclude(t *testing.T) {
	e, err := NewExcluder(Rules{Expressions: []string{`args[5] == "x"`}}, nil)
	require.NoError(t, err)

	excluded, _ := e.Excluded(rec("/home/u/app"))
	assert.False(t, excluded)
}

func TestNewExcluder_InvalidExpression(t *testing.T) {
	_, err := NewExcluder(Rules{Expressions: []string{`callee ==`}}, nil)
	assert.ErrorContains(t, err, "failed to compile exclusion expression")

	_, err = NewExcluder(Rules{Expressions: []string{`callee`}}, nil)
	assert.Error(t, err, "non-boolean expressions are rejected")
}
