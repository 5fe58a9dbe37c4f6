// Package filter decides which finalized records are build-system noise and
// must stay out of the performance dataset.
//
// Four rule families are evaluated independently against the resolved callee
// path; a match in any single rule excludes the record:
//   - Prefixes: system directories (/usr/, /bin/, ...)
//   - Suffixes: configure probes, shells and shell scripts
//   - Infixes: known harness markers
//   - Expressions: expr programs over the whole record, returning bool
//
// Exclusion is independent of eligibility.
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mrzor/trec/internal/record"
	"go.uber.org/zap"
)

// Rules holds the configurable noise patterns.
type Rules struct {
	Prefixes    []string `mapstructure:"prefixes" yaml:"prefixes"`
	Suffixes    []string `mapstructure:"suffixes" yaml:"suffixes"`
	Infixes     []string `mapstructure:"infixes" yaml:"infixes"`
	Expressions []string `mapstructure:"expressions" yaml:"expressions"`
}

// DefaultRules returns the patterns observed in Debian package builds.
func DefaultRules() Rules {
	return Rules{
		Prefixes: []string{"/bin/", "/usr/", "/sbin/", "/snap/", "/opt/", "/tmp/", "/etc/"},
		Suffixes: []string{"./conftest", "./configure", ".build.command", "/bin/sh", "/.", ".sh"},
		Infixes:  []string{"./exec.cmd"},
	}
}

// Excluder applies a compiled rule set.
type Excluder struct {
	rules    Rules
	programs []*vm.Program
	logger   *zap.Logger
}

// exprEnv is the evaluation environment of rule expressions.
func exprEnv(r *record.TraceRecord) map[string]interface{} {
	env := map[string]interface{}{
		"callee":     "",
		"raw_callee": "",
		"caller":     "",
		"cwd":        "",
		"args":       []string{},
		"envs":       []string{},
		"flags":      uint32(0),
	}
	if r == nil {
		return env
	}

	env["callee"] = r.ResolvedCallee()
	env["raw_callee"] = r.Callee
	env["caller"] = r.Caller
	env["cwd"] = r.WorkingDir()
	env["args"] = r.Args
	env["envs"] = r.Envs
	env["flags"] = r.Flags
	return env
}

// NewExcluder pre-compiles the rule expressions.
func NewExcluder(rules Rules, logger *zap.Logger) (*Excluder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	programs := make([]*vm.Program, len(rules.Expressions))
	for i, src := range rules.Expressions {
		program, err := expr.Compile(src, expr.Env(exprEnv(nil)), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile exclusion expression %q: %w", src, err)
		}
		programs[i] = program
	}

	return &Excluder{
		rules:    rules,
		programs: programs,
		logger:   logger,
	}, nil
}

// Excluded reports whether r matches any rule, and which one.
func (e *Excluder) Excluded(r *record.TraceRecord) (bool, string) {
	callee := r.ResolvedCallee()

	for _, p := range e.rules.Prefixes {
		if strings.HasPrefix(callee, p) {
			return true, "prefix " + p
		}
	}

	for _, s := range e.rules.Suffixes {
		if strings.HasSuffix(callee, s) {
			return true, "suffix " + s
		}
	}

	for _, s := range e.rules.Infixes {
		if strings.Contains(callee, s) {
			return true, "infix " + s
		}
	}

	if len(e.programs) == 0 {
		return false, ""
	}

	env := exprEnv(r)
	for i, program := range e.programs {
		out, err := expr.Run(program, env)
		if err != nil {
			// A broken rule never excludes.
			e.logger.Warn("exclusion expression failed",
				zap.String("expression", e.rules.Expressions[i]),
				zap.String("callee", callee),
				zap.Error(err))
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return true, "expression " + e.rules.Expressions[i]
		}
	}

	return false, ""
}
