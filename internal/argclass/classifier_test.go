package argclass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func memFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/hosts", []byte("127.0.0.1 localhost\n"), 0o644))
	require.NoError(t, fsys.MkdirAll("/tmp", 0o755))
	return fsys
}

func TestClassify_PriorityOrder(t *testing.T) {
	c := New(memFs(t), "/corpus", nil)

	args := []string{"-v", "--quality=9", "http://example.com", "42", "192.168.1.1:80", "/etc/hosts", "/tmp"}
	got := c.Classify(args)

	want := []Classified{
		{CategoryFlag, "-v"},
		{CategoryOperand, "--quality=9"},
		{CategoryURL, "http://example.com"},
		{CategoryNumber, "42"},
		{CategoryIP, "192.168.1.1:80"},
		{CategoryFile, "/etc/hosts"},
		{CategoryUnknown, "/tmp"},
	}
	assert.Equal(t, want, got)
}

func TestClassify_DoesNotMutateArgs(t *testing.T) {
	c := New(memFs(t), "/corpus", nil)

	args := []string{"--x", "if=/dev/zero"}
	_ = c.Classify(args)
	assert.Equal(t, []string{"--x", "if=/dev/zero"}, args)
}

func TestClassifyToken(t *testing.T) {
	c := New(memFs(t), "/corpus", nil)

	tests := []struct {
		token string
		want  Category
	}{
		{"--help", CategoryFlag},
		{"-", CategoryFlag},
		{"-5", CategoryFlag},
		{"--output=out.bin", CategoryOperand},
		{"-Dfoo=bar", CategoryOperand},
		{"if=/dev/zero", CategoryOperand},
		{"bs=1M", CategoryOperand},
		{"CFLAGS+=-O2", CategoryOperand},
		{"1=2", CategoryOperand},
		{"a/b=c", CategoryOperand},
		{"https://example.com/?q=1", CategoryURL},
		{"socks5h://proxy:1080", CategoryURL},
		{"data://x", CategoryURL},
		{"gopher://x", CategoryUnknown},
		{"3.14", CategoryNumber},
		{"1e10", CategoryNumber},
		{"1e400", CategoryNumber},
		{"-1e400", CategoryFlag},
		{"0x1p3", CategoryUnknown},
		{"+0X10", CategoryUnknown},
		{"10.0.0.1", CategoryIP},
		{"10.0.0.1:8080", CategoryIP},
		{"10.0.0.1:http", CategoryUnknown},
		{"10.0.0.1:1:2", CategoryUnknown},
		{"256.0.0.1", CategoryUnknown},
		{"::1", CategoryUnknown},
		{"/etc/hosts", CategoryFile},
		{"/tmp", CategoryUnknown},
		{"/does/not/exist", CategoryUnknown},
		{"report", CategoryUnknown},
		{"", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := c.ClassifyToken(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_CopiesFilesWithUniqueNames(t *testing.T) {
	fsys := memFs(t)
	require.NoError(t, afero.WriteFile(fsys, "/other/hosts", []byte("other\n"), 0o644))

	c := New(fsys, "/corpus", nil)
	n := 0
	c.uniq = func() string {
		n++
		return []string{"", "aaaa", "bbbb"}[n]
	}

	got := c.Classify([]string{"/etc/hosts", "/other/hosts"})
	require.Len(t, got, 2)

	first, err := afero.ReadFile(fsys, "/corpus/aaaa-hosts")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n", string(first))

	second, err := afero.ReadFile(fsys, "/corpus/bbbb-hosts")
	require.NoError(t, err)
	assert.Equal(t, "other\n", string(second))
}

func TestClassify_DefaultUniqueTokensDoNotCollide(t *testing.T) {
	fsys := memFs(t)
	c := New(fsys, "/corpus", nil)

	c.Classify([]string{"/etc/hosts", "/etc/hosts"})

	entries, err := afero.ReadDir(fsys, "/corpus")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestClassify_CopyFailureStillFile(t *testing.T) {
	fsys := memFs(t)
	c := New(afero.NewReadOnlyFs(fsys), "/corpus", nil)

	got, err := c.ClassifyToken("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, CategoryFile, got)
}

func TestClassify_OsFs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("seed"), 0o600))
	corpus := filepath.Join(dir, "fuzz", "files")

	c := New(afero.NewOsFs(), corpus, nil)
	got := c.Classify([]string{input, dir, filepath.Join(input, "child")})

	assert.Equal(t, []Classified{
		{CategoryFile, input},
		{CategoryUnknown, dir},
		{CategoryUnknown, filepath.Join(input, "child")},
	}, got)

	entries, err := os.ReadDir(corpus)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "-input.txt")
}

func TestClassified_YAML(t *testing.T) {
	in := []Classified{{CategoryFlag, "-v"}, {CategoryOperand, "if=/dev/zero"}}

	out, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "- op_flag: -v\n- op_arg: if=/dev/zero\n", string(out))

	var back []Classified
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, in, back)
}

func TestClassified_YAMLRejectsMultipleKeys(t *testing.T) {
	var c Classified
	assert.Error(t, yaml.Unmarshal([]byte("{op_flag: -v, op_num: '1'}"), &c))
}
