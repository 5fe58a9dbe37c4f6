// Package bpf describes the samples emitted by the execve tracepoint program
// and decodes them into typed fragments.
package bpf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mrzor/trec/internal/record"
)

// Sizes matching the kernel program.
//
//nolint:revive,staticcheck // ALL_CAPS naming matches C/kernel conventions
const (
	MAX_STR_SIZE   = 4096 - 8
	PATH_SIZE      = 256
	TASK_COMM_LEN  = 16
	MAX_PATH_READ  = 32
	MAX_ARGS       = 32
	MAX_ENVS       = 64
	MAX_PATH_DEPTH = 20
)

// Ring buffer map names, one per fragment kind.
const (
	MapEventsBasic    = "events_basic"
	MapEventsArg      = "events_arg"
	MapEventsEnv      = "events_env"
	MapEventsPathPart = "events_path_part"
)

// MapName returns the ring buffer map carrying samples of kind.
func MapName(kind record.Kind) string {
	switch kind {
	case record.KindBasic:
		return MapEventsBasic
	case record.KindArg:
		return MapEventsArg
	case record.KindEnv:
		return MapEventsEnv
	case record.KindPathPart:
		return MapEventsPathPart
	default:
		return ""
	}
}

// BasicSample matches struct data_basic.
type BasicSample struct {
	PidTgid  uint64
	Flags    uint32
	Comm     [TASK_COMM_LEN]byte
	Filename [PATH_SIZE]byte
	_        [4]byte // Tail padding to 8-byte alignment
}

// ArgSample matches struct data_arg.
type ArgSample struct {
	PidTgid uint64
	Arg     [MAX_STR_SIZE]byte
}

// EnvSample matches struct data_env.
type EnvSample struct {
	PidTgid uint64
	Env     [MAX_STR_SIZE]byte
}

// PathPartSample matches struct data_path_part.
type PathPartSample struct {
	PidTgid uint64
	Part    [MAX_PATH_READ]byte
}

// Decode parses a raw ring buffer sample of the given kind into a fragment.
// Samples shorter than the expected layout are rejected.
func Decode(kind record.Kind, raw []byte) (record.Fragment, error) {
	switch kind {
	case record.KindBasic:
		var s BasicSample
		if err := read(raw, &s); err != nil {
			return nil, fmt.Errorf("parsing %s sample: %w", kind, err)
		}
		return record.BasicFragment{
			Identity: record.Identity(s.PidTgid),
			Caller:   cString(s.Comm[:]),
			Callee:   cString(s.Filename[:]),
			Flags:    s.Flags,
		}, nil

	case record.KindArg:
		var s ArgSample
		if err := read(raw, &s); err != nil {
			return nil, fmt.Errorf("parsing %s sample: %w", kind, err)
		}
		text, ok := decodeText(s.Arg[:])
		return record.ArgumentFragment{Identity: record.Identity(s.PidTgid), Text: text, Raw: !ok}, nil

	case record.KindEnv:
		var s EnvSample
		if err := read(raw, &s); err != nil {
			return nil, fmt.Errorf("parsing %s sample: %w", kind, err)
		}
		text, ok := decodeText(s.Env[:])
		return record.EnvironmentFragment{Identity: record.Identity(s.PidTgid), Text: text, Raw: !ok}, nil

	case record.KindPathPart:
		var s PathPartSample
		if err := read(raw, &s); err != nil {
			return nil, fmt.Errorf("parsing %s sample: %w", kind, err)
		}
		return record.PathSegmentFragment{
			Identity: record.Identity(s.PidTgid),
			Text:     strings.ToValidUTF8(cString(s.Part[:]), "\uFFFD"),
		}, nil

	default:
		return nil, fmt.Errorf("unknown sample kind %d", kind)
	}
}

// read decodes raw into a fixed-size sample. Trailing bytes are ignored.
func read(raw []byte, sample interface{}) error {
	if size := binary.Size(sample); len(raw) < size {
		return fmt.Errorf("short sample: got=%d want>=%d", len(raw), size)
	}
	return binary.Read(bytes.NewReader(raw), binary.LittleEndian, sample)
}

// decodeText returns b up to the first NUL and whether it is valid UTF-8.
// Invalid sequences are kept as-is.
func decodeText(b []byte) (string, bool) {
	s := cString(b)
	return s, utf8.ValidString(s)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
