// Package argclass infers the type of each command-line token of a single
// invocation so the tokens can seed fuzzing.
//
// Pure predicates run first, in priority order. Only then is the filesystem
// consulted: an existing regular file is copied into the corpus directory
// under a unique name, a directory falls back to unknown.
package argclass

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Classifier assigns exactly one Category to each token.
type Classifier struct {
	fs        afero.Fs
	corpusDir string
	logger    *zap.Logger
	uniq      func() string
}

// New creates a Classifier copying file operands into corpusDir on fsys.
func New(fsys afero.Fs, corpusDir string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		fs:        fsys,
		corpusDir: corpusDir,
		logger:    logger,
		uniq:      uuid.NewString,
	}
}

// Classify returns a new slice parallel to args. args is not modified. Tokens
// whose probe fails are logged and left out.
func (c *Classifier) Classify(args []string) []Classified {
	results := make([]Classified, 0, len(args))
	for i, token := range args {
		category, err := c.ClassifyToken(token)
		if err != nil {
			c.logger.Warn("skipping argument",
				zap.Int("index", i),
				zap.String("token", token),
				zap.Strings("args", args),
				zap.Error(err))
			continue
		}
		results = append(results, Classified{Category: category, Token: token})
	}
	return results
}

// ClassifyToken returns the first matching category for token.
func (c *Classifier) ClassifyToken(token string) (Category, error) {
	for _, p := range purePredicates {
		if p.match(token) {
			return p.category, nil
		}
	}

	info, err := c.fs.Stat(token)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return CategoryUnknown, nil
	default:
		return "", fmt.Errorf("probing %q: %w", token, err)
	}

	if info.Mode().IsRegular() {
		dst, err := c.collect(token)
		if err != nil {
			c.logger.Warn("failed to copy file operand into corpus", zap.String("file", token), zap.Error(err))
		} else {
			c.logger.Debug("collected file operand", zap.String("file", token), zap.String("corpus", dst))
		}
		return CategoryFile, nil
	}

	return CategoryUnknown, nil
}

// collect copies src into the corpus directory and returns the copy's path.
func (c *Classifier) collect(src string) (string, error) {
	if err := c.fs.MkdirAll(c.corpusDir, 0o755); err != nil {
		return "", fmt.Errorf("creating corpus directory: %w", err)
	}

	in, err := c.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer func() {
		_ = in.Close() //nolint:errcheck // Read-only file
	}()

	dst := filepath.Join(c.corpusDir, c.uniq()+"-"+filepath.Base(src))
	out, err := c.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating corpus file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() //nolint:errcheck // Already failing
		return "", fmt.Errorf("copying into corpus: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing corpus file: %w", err)
	}

	return dst, nil
}
