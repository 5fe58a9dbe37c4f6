package record

// Status bit positions set by the kernel side when a capture fails or is cut short.
//
//nolint:revive,staticcheck // ALL_CAPS naming matches C/kernel conventions
const (
	F_FAIL_ARG        = 0
	F_FAIL_ENV        = 1
	F_FAIL_PATH       = 2
	F_INCOMPLETE_ARGS = 3
	F_INCOMPLETE_ENVS = 4
)

// Flags is the decoded form of a status bitmask.
type Flags struct {
	FailArg        bool
	FailEnv        bool
	FailPath       bool
	IncompleteArgs bool
	IncompleteEnvs bool
}

// DecodeFlags tests each known bit independently. Unknown bits are ignored.
func DecodeFlags(status uint32) Flags {
	return Flags{
		FailArg:        hasBit(status, F_FAIL_ARG),
		FailEnv:        hasBit(status, F_FAIL_ENV),
		FailPath:       hasBit(status, F_FAIL_PATH),
		IncompleteArgs: hasBit(status, F_INCOMPLETE_ARGS),
		IncompleteEnvs: hasBit(status, F_INCOMPLETE_ENVS),
	}
}

// AnyFailure reports whether one of the fail-to-capture bits is set.
func (f Flags) AnyFailure() bool {
	return f.FailArg || f.FailEnv || f.FailPath
}

func hasBit(status uint32, bit uint) bool {
	return status&(1<<bit) != 0
}
