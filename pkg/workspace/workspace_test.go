package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treesync/pkg/object"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func paths(entries []object.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestLoadSortsAndReadsContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"z.txt":          "z",
		"a/b/c.go":       "package b\n",
		"README.md":      "# hi\n",
		".git/HEAD":      "ref: refs/heads/main\n",
		".git/objects/x": "blob",
	})

	got, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "a/b/c.go", "z.txt"}, paths(got))
	assert.Equal(t, "package b\n", string(got[1].Content))
}

func TestLoadHonorsIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":      "# build output\n*.log\nbuild/\n",
		IgnoreFile:        "secrets.env\n",
		"main.go":         "package main\n",
		"debug.log":       "noise",
		"sub/trace.log":   "noise",
		"build/out.bin":   "bin",
		"secrets.env":     "TOKEN=x",
		"docs/guide.md":   "guide",
		"docs/build.md":   "not a directory match",
		"sub/keep/me.txt": "kept",
	})

	got, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		".gitignore",
		IgnoreFile,
		"docs/build.md",
		"docs/guide.md",
		"main.go",
		"sub/keep/me.txt",
	}, paths(got))
}

func TestLoadRejectsNonDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := Load(file)
	require.Error(t, err)
	_, err = Load(filepath.Join(root, "missing"))
	require.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	root := t.TempDir()
	files := []object.FileEntry{
		{Path: "a.txt", Content: []byte("x")},
		{Path: "deep/nested/file.bin", Content: []byte{0, 1, 2}},
		{Path: "empty", Content: nil},
	}
	require.NoError(t, Write(root, files))

	got, err := Load(root)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []byte{0, 1, 2}, got[1].Content)
	assert.Empty(t, got[2].Content)
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"../evil", "/etc/passwd", "a/../../b", "", "."} {
		err := Write(root, []object.FileEntry{{Path: p, Content: []byte("x")}})
		assert.Error(t, err, "path %q", p)
	}
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"a/b":       "a/b",
		"./a//b/":   "a/b",
		`dir\file`:  "dir/file",
		"a/../b":    "b",
		"x/./y/z/.": "x/y/z",
	}
	for in, want := range tests {
		got, err := CleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}
