// Package config gathers trec settings from the environment, an optional
// rules file and command-line flags, and validates them before any event
// is processed.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrMissing wraps every configuration problem that must stop the program.
var ErrMissing = errors.New("missing configuration")

// Env holds settings read from TREC_* environment variables.
type Env struct {
	LogLevel    string        `env:"TREC_LOG_LEVEL" envDefault:"info"`
	LogFile     string        `env:"TREC_LOG_FILE" envDefault:""`
	MetricsAddr string        `env:"TREC_METRICS_ADDR" envDefault:""`
	BPFObject   string        `env:"TREC_BPF_OBJECT" envDefault:"/usr/lib/trec/trec.bpf.o"`
	EvictAfter  time.Duration `env:"TREC_EVICT_AFTER" envDefault:"0s"`

	// Span export settings, used only when an OTLP endpoint is configured.
	SpanAttributes string `env:"TREC_SPAN_ATTRIBUTES" envDefault:""`
	TraceID        string `env:"TREC_TRACE_ID" envDefault:""`
}

// ParseEnv parses Env from the process environment.
func ParseEnv() (*Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// FuzzEnv holds the settings only fuzzgen needs.
type FuzzEnv struct {
	PerfDir string `env:"TREC_PERF_DIR,required,notEmpty"`
}

// ParseFuzzEnv parses FuzzEnv. An unset or empty TREC_PERF_DIR is reported
// as ErrMissing.
func ParseFuzzEnv() (*FuzzEnv, error) {
	var cfg FuzzEnv
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissing, err)
	}
	return &cfg, nil
}

// Record configures a capture session.
type Record struct {
	Output     string
	Package    string
	Version    string
	ObjectPath string
	RulesFile  string
	EvictAfter time.Duration
}

// Validate checks that every required record setting is present.
func (c *Record) Validate() error {
	var missing []string
	if c.Output == "" {
		missing = append(missing, "output path (-o)")
	}
	if c.Package == "" {
		missing = append(missing, "package name (-p)")
	}
	if c.Version == "" {
		missing = append(missing, "package version (-V)")
	}
	if c.ObjectPath == "" {
		missing = append(missing, "BPF object path (--object or TREC_BPF_OBJECT)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	if c.EvictAfter < 0 {
		return fmt.Errorf("%w: eviction age must not be negative, got %s", ErrMissing, c.EvictAfter)
	}
	return nil
}

// UsesSQLite reports whether the output should be written as a database.
func (c *Record) UsesSQLite() bool {
	return strings.HasSuffix(c.Output, ".db")
}

// Datagen configures offline dataset generation.
type Datagen struct {
	Files     []string
	OutDir    string
	RulesFile string
}

// Validate checks that at least one dataset file was named.
func (c *Datagen) Validate() error {
	if len(c.Files) == 0 {
		return fmt.Errorf("%w: at least one dataset file (-f)", ErrMissing)
	}
	return nil
}

// Fuzzgen configures classification of a single invocation.
type Fuzzgen struct {
	Package string
	Version string
	Exe     string
	Args    []string
	PerfDir string
}

// ParseFuzzgen builds a Fuzzgen from positional arguments
// PKG VERSION EXE [ARGS...] and the environment.
func ParseFuzzgen(args []string) (*Fuzzgen, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: expected PKG VERSION EXE [ARGS...], got %d argument(s)", ErrMissing, len(args))
	}

	fuzzEnv, err := ParseFuzzEnv()
	if err != nil {
		return nil, err
	}

	return &Fuzzgen{
		Package: args[0],
		Version: args[1],
		Exe:     args[2],
		Args:    args[3:],
		PerfDir: fuzzEnv.PerfDir,
	}, nil
}
