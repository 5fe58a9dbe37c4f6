package record

import (
	"strings"
	"time"
)

// Identity is the correlation key shared by all fragments of one execve() call.
// The producer mixes pid_tgid with a boot-relative timestamp, so values are not
// reused for a different call.
type Identity uint64

// TraceRecord accumulates every fragment seen for one Identity.
type TraceRecord struct {
	Identity Identity
	Caller   string   // comm of the calling process
	Callee   string   // path handed to execve(), possibly relative
	Args     []string // argv, arrival order
	Envs     []string // envp, arrival order
	Flags    uint32   // raw status bitmask from the basic fragment

	// Accumulation-only state, not persisted.
	PathParts []string // working directory components, innermost first
	Origin    Kind     // fragment kind that created the record
	FirstSeen time.Time
	LastSeen  time.Time

	workingDir string
	assembled  bool
	restored   bool
}

// New creates an empty record for id.
func New(id Identity, origin Kind, now time.Time) *TraceRecord {
	return &TraceRecord{
		Identity:  id,
		Origin:    origin,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// Decoded returns the named conditions encoded in Flags.
func (r *TraceRecord) Decoded() Flags {
	return DecodeFlags(r.Flags)
}

// Eligible reports whether the record carries the minimum fields to be useful.
func (r *TraceRecord) Eligible() bool {
	return r.Missing() == ""
}

// Missing names the first required field that is absent, or "" when the record
// is eligible. A restored record counts its persisted working directory in
// place of the discarded segments.
func (r *TraceRecord) Missing() string {
	switch {
	case r.Caller == "":
		return "comm"
	case r.Callee == "":
		return "file_path"
	case len(r.Args) == 0:
		return "args"
	case len(r.PathParts) == 0 && !r.restored:
		return "working_dir"
	}
	return ""
}

// Finalize freezes the derived fields. Calling it again has no effect.
func (r *TraceRecord) Finalize() {
	r.AssembleWorkingDir()
}

// AssembleWorkingDir computes the working directory from PathParts the first
// time it is called and returns the cached value afterwards.
func (r *TraceRecord) AssembleWorkingDir() string {
	if !r.assembled {
		r.workingDir = JoinWorkingDir(r.PathParts)
		r.assembled = true
	}
	return r.workingDir
}

// WorkingDir returns the assembled working directory, or "" before assembly.
func (r *TraceRecord) WorkingDir() string {
	return r.workingDir
}

// Assembled reports whether the working directory has been computed.
func (r *TraceRecord) Assembled() bool {
	return r.assembled
}

// RestoreWorkingDir marks the record as assembled with a previously persisted value.
func (r *TraceRecord) RestoreWorkingDir(dir string) {
	r.workingDir = dir
	r.assembled = true
	r.restored = true
}

// ResolvedCallee returns Callee as an absolute path, prefixing the working
// directory when the callee is relative. It does not assemble the record:
// before Finalize the directory is computed from the segments seen so far.
func (r *TraceRecord) ResolvedCallee() string {
	if strings.HasPrefix(r.Callee, "/") {
		return r.Callee
	}
	dir := r.workingDir
	if !r.assembled {
		dir = JoinWorkingDir(r.PathParts)
	}
	return dir + "/" + r.Callee
}

// JoinWorkingDir reverses parts (innermost first) into an absolute path.
// No normalisation is applied to the segments. parts is left untouched.
func JoinWorkingDir(parts []string) string {
	reversed := make([]string, len(parts))
	for i, p := range parts {
		reversed[len(parts)-1-i] = p
	}
	return "/" + strings.Join(reversed, "/")
}
