package store

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrzor/trec/internal/dataset"
	"github.com/mrzor/trec/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func sessionFile() *dataset.File {
	a := record.New(1<<63|5, record.KindBasic, time.Unix(1, 0))
	a.Caller = "sh"
	a.Callee = "./configure"
	a.Args = []string{"./configure", "--prefix=/usr", "raw\xff\xfe"}
	a.Envs = []string{"LANG=C", "PATH=/usr/bin"}
	a.PathParts = []string{"pkg", "build"}
	a.Flags = 1<<record.F_FAIL_ENV | 1<<record.F_INCOMPLETE_ARGS

	b := record.New(2, record.KindArg, time.Unix(2, 0))
	b.Caller = "make"
	b.Callee = "/usr/bin/cc"
	b.Args = []string{"cc", "-c", "x.c"}
	b.PathParts = []string{"src"}

	return &dataset.File{Package: "gzip", Version: "1.12", Data: []*record.TraceRecord{a, b}}
}

func TestStore_RoundTrip(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	orig := sessionFile()
	require.NoError(t, s.Save(ctx, orig))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "gzip", got.Package)
	assert.Equal(t, "1.12", got.Version)
	require.Len(t, got.Data, 2)

	for i, want := range orig.Data {
		r := got.Data[i]
		assert.Equal(t, want.Identity, r.Identity)
		assert.Equal(t, want.Caller, r.Caller)
		assert.Equal(t, want.Callee, r.Callee)
		assert.Equal(t, want.Flags, r.Flags)
		assert.Equal(t, want.Decoded(), r.Decoded())
		assert.Equal(t, want.WorkingDir(), r.WorkingDir())
		assert.Equal(t, want.Args, r.Args)
		assert.True(t, r.Assembled())
		assert.True(t, r.Eligible())
		assert.Empty(t, r.PathParts)
	}

	assert.Equal(t, "/build/pkg", got.Data[0].WorkingDir())
	assert.Equal(t, []string{"LANG=C", "PATH=/usr/bin"}, got.Data[0].Envs)
	assert.Empty(t, got.Data[1].Envs)
}

func TestStore_SaveReplacesSession(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sessionFile()))

	second := &dataset.File{Package: "zstd", Version: "1.5", Data: sessionFile().Data[1:]}
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "zstd", got.Package)
	require.Len(t, got.Data, 1)
	assert.Equal(t, record.Identity(2), got.Data[0].Identity)
}

func TestStore_LoadEmpty(t *testing.T) {
	s, _ := openTemp(t)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestStore_SaveCancelled(t *testing.T) {
	s, _ := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, sessionFile()))
}

func TestOpenExisting_MissingFileNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.db")

	_, err := OpenExisting(path)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, path)
}

func TestOpenExisting(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Save(context.Background(), sessionFile()))

	existing, err := OpenExisting(path)
	require.NoError(t, err)
	defer existing.Close() //nolint:errcheck // Test cleanup

	f, err := existing.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gzip", f.Package)
}
