package record

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlRecord is the persisted shape of a finalized TraceRecord. Decoded flags
// are written for downstream readers but recomputed from flags on load.
// Strings that are not valid UTF-8 are written as !!binary by the encoder and
// come back byte-for-byte.
type yamlRecord struct {
	PidTgid        uint64   `yaml:"pid_tgid"`
	Comm           string   `yaml:"comm"`
	FilePath       string   `yaml:"file_path"`
	Args           []string `yaml:"args"`
	Envs           []string `yaml:"envs"`
	WorkingDir     string   `yaml:"working_dir"`
	Flags          uint32   `yaml:"flags"`
	FailArg        bool     `yaml:"fail_arg"`
	FailEnv        bool     `yaml:"fail_env"`
	FailPath       bool     `yaml:"fail_path"`
	IncompleteArgs bool     `yaml:"incomplete_args"`
	IncompleteEnvs bool     `yaml:"incomplete_envs"`
}

// MarshalYAML implements yaml.Marshaler. The record is finalized first.
func (r *TraceRecord) MarshalYAML() (interface{}, error) {
	dir := r.AssembleWorkingDir()
	decoded := r.Decoded()

	return yamlRecord{
		PidTgid:        uint64(r.Identity),
		Comm:           r.Caller,
		FilePath:       r.Callee,
		Args:           r.Args,
		Envs:           r.Envs,
		WorkingDir:     dir,
		Flags:          r.Flags,
		FailArg:        decoded.FailArg,
		FailEnv:        decoded.FailEnv,
		FailPath:       decoded.FailPath,
		IncompleteArgs: decoded.IncompleteArgs,
		IncompleteEnvs: decoded.IncompleteEnvs,
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Accumulation-only fields come back
// empty.
func (r *TraceRecord) UnmarshalYAML(value *yaml.Node) error {
	var y yamlRecord
	if err := value.Decode(&y); err != nil {
		return fmt.Errorf("decoding trace record at line %d: %w", value.Line, err)
	}

	*r = TraceRecord{
		Identity: Identity(y.PidTgid),
		Caller:   y.Comm,
		Callee:   y.FilePath,
		Args:     y.Args,
		Envs:     y.Envs,
		Flags:    y.Flags,
	}
	r.RestoreWorkingDir(y.WorkingDir)

	return nil
}
