// Package bpfloader manages the lifecycle of the execve tracing program and
// its ring buffers.
package bpfloader

import (
	"errors"
	"fmt"

	"github.com/mrzor/trec/internal/bpf"
	"github.com/mrzor/trec/internal/eventstream"
	"github.com/mrzor/trec/internal/record"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// ProgramName is the tracepoint program inside the BPF object.
const ProgramName = "trace_execve_enter"

// Kinds lists the ring buffers opened by OpenRingBuffers, in order.
var Kinds = []record.Kind{record.KindBasic, record.KindArg, record.KindEnv, record.KindPathPart}

// Loader owns the loaded collection, the tracepoint link and the readers.
type Loader struct {
	coll       *ebpf.Collection
	execveLink link.Link
	readers    []*ringbuf.Reader
}

// New loads the compiled BPF object at objectPath into the kernel.
func New(objectPath string) (*Loader, error) {
	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, fmt.Errorf("loading BPF object %s: %w", objectPath, err)
	}

	for _, kind := range Kinds {
		if _, ok := spec.Maps[bpf.MapName(kind)]; !ok {
			return nil, fmt.Errorf("BPF object %s has no %s map", objectPath, bpf.MapName(kind))
		}
	}
	if _, ok := spec.Programs[ProgramName]; !ok {
		return nil, fmt.Errorf("BPF object %s has no %s program", objectPath, ProgramName)
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock limit: %w", err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("loading BPF collection: %w", err)
	}

	return &Loader{coll: coll}, nil
}

// closeErrorf releases what Attach or OpenRingBuffers created so far and
// returns a formatted error.
func (l *Loader) closeErrorf(errstr string, e error) error {
	for _, rd := range l.readers {
		_ = rd.Close() //nolint:errcheck // Best-effort cleanup in error path
	}
	l.readers = nil
	if l.execveLink != nil {
		_ = l.execveLink.Close() //nolint:errcheck // Best-effort cleanup in error path
		l.execveLink = nil
	}
	return fmt.Errorf("%s: %w", errstr, e)
}

// Attach attaches the program to syscalls:sys_enter_execve.
func (l *Loader) Attach() error {
	var err error

	l.execveLink, err = link.Tracepoint("syscalls", "sys_enter_execve", l.coll.Programs[ProgramName], nil)
	if err != nil {
		return l.closeErrorf("attaching sys_enter_execve tracepoint", err)
	}

	return nil
}

// OpenRingBuffers opens one reader per fragment kind.
func (l *Loader) OpenRingBuffers() ([]eventstream.Source, error) {
	sources := make([]eventstream.Source, 0, len(Kinds))
	for _, kind := range Kinds {
		rd, err := ringbuf.NewReader(l.coll.Maps[bpf.MapName(kind)])
		if err != nil {
			return nil, l.closeErrorf("opening "+bpf.MapName(kind)+" ring buffer", err)
		}
		l.readers = append(l.readers, rd)
		sources = append(sources, eventstream.Source{Kind: kind, Reader: rd})
	}
	return sources, nil
}

// Close releases all BPF resources including links and loaded objects.
// Readers already closed by the stream are skipped silently.
func (l *Loader) Close() error {
	var errs []error

	for _, rd := range l.readers {
		if err := rd.Close(); err != nil && !errors.Is(err, ringbuf.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing ring buffer reader: %w", err))
		}
	}

	if l.execveLink != nil {
		if err := l.execveLink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing execve link: %w", err))
		}
	}

	l.coll.Close()

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}

	return nil
}
