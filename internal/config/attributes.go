package config

import (
	"fmt"
	"strings"
)

// CustomAttribute is a span attribute computed from each record.
type CustomAttribute struct {
	Name       string
	Expression string
}

// ParseCustomAttributes parses "name=expression" definitions separated by
// semicolons. Only the first '=' separates name from expression, so
// expressions may compare with ==.
func ParseCustomAttributes(spec string) ([]CustomAttribute, error) {
	var attrs []CustomAttribute
	for _, def := range strings.Split(spec, ";") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		name, expression, ok := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		expression = strings.TrimSpace(expression)
		if !ok || name == "" || expression == "" {
			return nil, fmt.Errorf("invalid span attribute %q: expected name=expression", def)
		}

		attrs = append(attrs, CustomAttribute{Name: name, Expression: expression})
	}
	return attrs, nil
}
