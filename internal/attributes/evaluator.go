package attributes

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mrzor/trec/internal/config"
	"github.com/mrzor/trec/internal/record"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Evaluator computes span attributes from records with compiled expr programs.
type Evaluator struct {
	defs     []config.CustomAttribute
	programs []*vm.Program
	logger   *zap.Logger
}

// recordEnv is what an attribute expression can see. A nil record yields the
// zero-valued shape used for type checking at compile time.
func recordEnv(r *record.TraceRecord) map[string]interface{} {
	if r == nil {
		return map[string]interface{}{
			"env":     map[string]string{},
			"args":    []string{},
			"cmdline": "",
			"callee":  "",
			"caller":  "",
			"cwd":     "",
			"failed":  false,
		}
	}

	return map[string]interface{}{
		"env":     EnvMap(r.Envs),
		"args":    r.Args,
		"cmdline": strings.Join(r.Args, " "),
		"callee":  r.ResolvedCallee(),
		"caller":  r.Caller,
		"cwd":     r.WorkingDir(),
		"failed":  r.Decoded().AnyFailure(),
	}
}

// EnvMap splits KEY=VALUE entries. Entries without '=' map to "". A later
// duplicate key wins, as it would for the traced program.
func EnvMap(envs []string) map[string]string {
	m := make(map[string]string, len(envs))
	for _, kv := range envs {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}

// NewEvaluator compiles every definition up front so a broken expression is
// reported before capture starts.
func NewEvaluator(defs []config.CustomAttribute, logger *zap.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	programs := make([]*vm.Program, len(defs))
	for i, def := range defs {
		program, err := expr.Compile(def.Expression, expr.Env(recordEnv(nil)))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", def.Name, err)
		}
		programs[i] = program
	}

	return &Evaluator{
		defs:     defs,
		programs: programs,
		logger:   logger,
	}, nil
}

// Evaluate returns the custom attributes for r. Expressions failing at run
// time are logged and skipped. Map results expand into one attribute per key.
func (e *Evaluator) Evaluate(r *record.TraceRecord) []attribute.KeyValue {
	if e == nil || len(e.defs) == 0 || r == nil {
		return nil
	}

	env := recordEnv(r)

	var attrs []attribute.KeyValue
	for i, def := range e.defs {
		out, err := expr.Run(e.programs[i], env)
		if err != nil {
			e.logger.Warn("failed to evaluate span attribute",
				zap.String("attribute", def.Name),
				zap.Uint64("identity", uint64(r.Identity)),
				zap.Error(err))
			continue
		}

		value := reflect.ValueOf(out)
		if value.Kind() != reflect.Map {
			attrs = append(attrs, toAttribute(def.Name, out))
			continue
		}

		keys := value.MapKeys()
		sort.Slice(keys, func(a, b int) bool {
			return fmt.Sprint(keys[a].Interface()) < fmt.Sprint(keys[b].Interface())
		})
		for _, key := range keys {
			name := def.Name + "." + sanitizeAttributeName(fmt.Sprint(key.Interface()))
			attrs = append(attrs, toAttribute(name, value.MapIndex(key).Interface()))
		}
	}

	return attrs
}

// toAttribute keeps booleans, integers, floats and string lists typed.
// Anything else is formatted as a string.
func toAttribute(name string, v interface{}) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(name, x)
	case bool:
		return attribute.Bool(name, x)
	case int:
		return attribute.Int(name, x)
	case int64:
		return attribute.Int64(name, x)
	case float64:
		return attribute.Float64(name, x)
	case []string:
		return attribute.StringSlice(name, x)
	default:
		return attribute.String(name, fmt.Sprint(v))
	}
}

// sanitizeAttributeName replaces characters outside [A-Za-z0-9_] with '_'.
func sanitizeAttributeName(name string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			return c
		default:
			return '_'
		}
	}, name)
}
