// Package dataset persists captured trace records and derives the perf and
// fuzz datasets from them.
package dataset

import (
	"bytes"
	"fmt"

	"github.com/mrzor/trec/internal/record"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of one capture session.
type File struct {
	Package string                `yaml:"package"`
	Version string                `yaml:"version"`
	Data    []*record.TraceRecord `yaml:"data"`
}

// Load reads a dataset file. Transient record state is not restored.
func Load(fsys afero.Fs, path string) (*File, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if f.Package == "" || f.Version == "" {
		return nil, fmt.Errorf("dataset %s: package and version are required", path)
	}
	return &f, nil
}

// Save writes the dataset as YAML, finalizing every record first.
func (f *File) Save(fsys afero.Fs, path string) error {
	for _, r := range f.Data {
		r.Finalize()
	}

	if err := writeYAML(fsys, path, f); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	return nil
}

func writeYAML(fsys afero.Fs, path string, v interface{}) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
