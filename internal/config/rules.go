package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/mrzor/trec/internal/filter"

	"github.com/spf13/viper"
)

// LoadRules returns the exclusion rules. Built-in defaults apply unless the
// optional YAML file at path or a TREC_EXCLUDE_* variable overrides them.
func LoadRules(path string) (filter.Rules, error) {
	v := viper.New()

	defaults := filter.DefaultRules()
	v.SetDefault("exclude.prefixes", defaults.Prefixes)
	v.SetDefault("exclude.suffixes", defaults.Suffixes)
	v.SetDefault("exclude.infixes", defaults.Infixes)
	v.SetDefault("exclude.expressions", defaults.Expressions)

	v.SetEnvPrefix("TREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return filter.Rules{}, fmt.Errorf("%w: rules file %s not found", ErrMissing, path)
			}
			return filter.Rules{}, fmt.Errorf("reading rules file %s: %w", path, err)
		}
	}

	return filter.Rules{
		Prefixes:    v.GetStringSlice("exclude.prefixes"),
		Suffixes:    v.GetStringSlice("exclude.suffixes"),
		Infixes:     v.GetStringSlice("exclude.infixes"),
		Expressions: v.GetStringSlice("exclude.expressions"),
	}, nil
}
