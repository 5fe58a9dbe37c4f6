package record

// Kind identifies which kernel stream a fragment came from.
type Kind uint8

// Fragment kinds, one per ring buffer.
const (
	KindUnknown Kind = iota
	KindBasic
	KindArg
	KindEnv
	KindPathPart
)

// String returns the ring buffer suffix of the kind.
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindArg:
		return "arg"
	case KindEnv:
		return "env"
	case KindPathPart:
		return "path_part"
	default:
		return "unknown"
	}
}

// Fragment is one partial piece of information about a single invocation.
// The concrete types below are the only implementations.
type Fragment interface {
	FragmentIdentity() Identity
	FragmentKind() Kind
}

// BasicFragment carries the caller, callee and capture status.
type BasicFragment struct {
	Identity Identity
	Caller   string
	Callee   string
	Flags    uint32
}

// ArgumentFragment carries one argv entry. Raw is set when Text is not valid UTF-8.
type ArgumentFragment struct {
	Identity Identity
	Text     string
	Raw      bool
}

// EnvironmentFragment carries one envp entry. Raw is set when Text is not valid UTF-8.
type EnvironmentFragment struct {
	Identity Identity
	Text     string
	Raw      bool
}

// PathSegmentFragment carries one working directory component, innermost first.
type PathSegmentFragment struct {
	Identity Identity
	Text     string
}

func (f BasicFragment) FragmentIdentity() Identity       { return f.Identity }
func (f ArgumentFragment) FragmentIdentity() Identity    { return f.Identity }
func (f EnvironmentFragment) FragmentIdentity() Identity { return f.Identity }
func (f PathSegmentFragment) FragmentIdentity() Identity { return f.Identity }

func (BasicFragment) FragmentKind() Kind       { return KindBasic }
func (ArgumentFragment) FragmentKind() Kind    { return KindArg }
func (EnvironmentFragment) FragmentKind() Kind { return KindEnv }
func (PathSegmentFragment) FragmentKind() Kind { return KindPathPart }
