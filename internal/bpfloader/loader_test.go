package bpfloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrzor/trec/internal/bpf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingObject(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.bpf.o"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading BPF object")
}

func TestNew_NotAnELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bpf.o")
	require.NoError(t, os.WriteFile(path, []byte("not an object file"), 0o600))

	_, err := New(path)
	assert.Error(t, err)
}

func TestKindsHaveMaps(t *testing.T) {
	names := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		names = append(names, bpf.MapName(k))
	}
	assert.Equal(t, []string{"events_basic", "events_arg", "events_env", "events_path_part"}, names)
}
