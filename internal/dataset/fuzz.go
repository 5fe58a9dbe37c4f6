package dataset

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mrzor/trec/internal/argclass"
)

// FuzzEntry describes one invocation as fuzzing seed material.
type FuzzEntry struct {
	Package        string                `yaml:"package"`
	Version        string                `yaml:"version"`
	Exe            string                `yaml:"exe"`
	RawArgs        []string              `yaml:"raw_args"`
	ClassifiedArgs []argclass.Classified `yaml:"classified_args"`
}

// Classifier types command-line tokens. *argclass.Classifier implements it.
type Classifier interface {
	Classify(args []string) []argclass.Classified
}

// NewFuzzEntry classifies args, the tokens following exe on the command line.
// RawArgs keeps exe as its first element.
func NewFuzzEntry(pkg, version, exe string, args []string, c Classifier) FuzzEntry {
	raw := make([]string, 0, len(args)+1)
	raw = append(raw, exe)
	raw = append(raw, args...)

	return FuzzEntry{
		Package:        pkg,
		Version:        version,
		Exe:            exe,
		RawArgs:        raw,
		ClassifiedArgs: c.Classify(args),
	}
}

// FuzzDir is where per-invocation fuzz datasets are written under perfDir.
func FuzzDir(perfDir string) string {
	return filepath.Join(perfDir, "fuzz")
}

// CorpusDir is where file operands are copied under perfDir.
func CorpusDir(perfDir string) string {
	return filepath.Join(FuzzDir(perfDir), "files")
}

// FuzzEntryPath names the dataset for one invocation recorded at now.
func FuzzEntryPath(perfDir string, now time.Time) string {
	return filepath.Join(FuzzDir(perfDir), fmt.Sprintf("fuzz-%d", now.UnixNano()))
}
