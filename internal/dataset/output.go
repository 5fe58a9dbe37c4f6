package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PerfPath names the perf dataset of a package version inside outDir.
func PerfPath(outDir, pkg, version string) string {
	return filepath.Join(outDir, fmt.Sprintf("%s-%s-perf", pkg, version))
}

// FuzzPath names the batched fuzz dataset of a package version inside outDir.
func FuzzPath(outDir, pkg, version string) string {
	return filepath.Join(outDir, fmt.Sprintf("%s-%s-fuzz", pkg, version))
}

// WritePerf writes perf as a YAML list of paths.
func WritePerf(fsys afero.Fs, path string, perf []string) error {
	if perf == nil {
		perf = []string{}
	}
	return writeYAML(fsys, path, perf)
}

// WriteFuzz writes a list of fuzz entries.
func WriteFuzz(fsys afero.Fs, path string, entries []FuzzEntry) error {
	if entries == nil {
		entries = []FuzzEntry{}
	}
	return writeYAML(fsys, path, entries)
}

// WriteFuzzEntry writes the dataset of a single invocation, creating its
// directory if needed.
func WriteFuzzEntry(fsys afero.Fs, path string, entry FuzzEntry) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return writeYAML(fsys, path, entry)
}

// LoadFunc reads one capture file.
type LoadFunc func(path string) (*File, error)

// Generator turns capture files into perf and fuzz datasets.
type Generator struct {
	fs       afero.Fs
	outDir   string
	excluder Excluder
	load     LoadFunc
	logger   *zap.Logger
}

// NewGenerator writes outputs under outDir on fsys. Inputs are read as YAML
// from fsys unless WithLoader replaces the loader.
func NewGenerator(fsys afero.Fs, outDir string, excluder Excluder, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		fs:       fsys,
		outDir:   outDir,
		excluder: excluder,
		load:     func(path string) (*File, error) { return Load(fsys, path) },
		logger:   logger,
	}
}

// WithLoader replaces how capture files are read.
func (g *Generator) WithLoader(load LoadFunc) *Generator {
	g.load = load
	return g
}

// Outputs lists the files written for one input.
type Outputs struct {
	Perf string
	Fuzz string
}

// Generate processes one capture file.
func (g *Generator) Generate(path string) (Outputs, error) {
	g.logger.Info("loading dataset", zap.String("file", path))
	f, err := g.load(path)
	if err != nil {
		return Outputs{}, err
	}

	result := Analyze(f.Data, g.excluder, g.logger)

	out := Outputs{
		Perf: PerfPath(g.outDir, f.Package, f.Version),
		Fuzz: FuzzPath(g.outDir, f.Package, f.Version),
	}
	if err := g.fs.MkdirAll(g.outDir, 0o755); err != nil {
		return Outputs{}, fmt.Errorf("creating %s: %w", g.outDir, err)
	}
	if err := WritePerf(g.fs, out.Perf, result.Perf); err != nil {
		return Outputs{}, err
	}
	if err := WriteFuzz(g.fs, out.Fuzz, result.Fuzz); err != nil {
		return Outputs{}, err
	}

	g.logger.Info("wrote datasets",
		zap.String("file", path),
		zap.Int("records", len(f.Data)),
		zap.Int("perf", len(result.Perf)),
		zap.String("perf_path", out.Perf),
		zap.String("fuzz_path", out.Fuzz))
	return out, nil
}

// GenerateAll processes every file independently. A failing file does not
// stop the others; all failures are returned together.
func (g *Generator) GenerateAll(paths []string) ([]Outputs, error) {
	var (
		outputs []Outputs
		errs    error
	)
	for _, path := range paths {
		out, err := g.Generate(path)
		if err != nil {
			g.logger.Error("dataset generation failed", zap.String("file", path), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		outputs = append(outputs, out)
	}
	return outputs, errs
}
