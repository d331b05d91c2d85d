package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treesync/pkg/object"
)

func file(path, content string) object.FileEntry {
	return object.FileEntry{Path: path, Content: []byte(content)}
}

func remoteRef(path, content string) object.BlobRef {
	return object.NewBlobRef(path, object.HashBlob([]byte(content)))
}

func TestBuildPartitions(t *testing.T) {
	desired := []object.FileEntry{
		file("same.txt", "same"),
		file("changed.txt", "new"),
		file("added.txt", "added"),
	}
	remote := []object.BlobRef{
		remoteRef("same.txt", "same"),
		remoteRef("changed.txt", "old"),
		remoteRef("gone.txt", "gone"),
	}

	res := Build(desired, remote)

	if diff := cmp.Diff([]object.BlobRef{remoteRef("same.txt", "same")}, res.Reuse); diff != "" {
		t.Fatalf("reuse mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]object.FileEntry{file("changed.txt", "new"), file("added.txt", "added")}, res.Upload); diff != "" {
		t.Fatalf("upload mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"gone.txt"}, res.Removed)
	assert.False(t, res.Unchanged())
}

func TestBuildReuseAndUploadCoverDesired(t *testing.T) {
	desired := []object.FileEntry{file("a", "1"), file("b", "2"), file("c", "3"), file("d/e", "4")}
	remote := []object.BlobRef{remoteRef("a", "1"), remoteRef("b", "x"), remoteRef("d/e", "4")}

	res := Build(desired, remote)
	paths := make(map[string]int)
	for _, r := range res.Reuse {
		paths[r.Path]++
	}
	for _, u := range res.Upload {
		paths[u.Path]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d/e": 1}, paths)
	assert.Len(t, res.Reuse, 2)
}

func TestBuildSameContentDifferentPathUploads(t *testing.T) {
	res := Build([]object.FileEntry{file("copy.txt", "x")}, []object.BlobRef{remoteRef("orig.txt", "x")})
	assert.Empty(t, res.Reuse)
	require.Len(t, res.Upload, 1)
	assert.Equal(t, []string{"orig.txt"}, res.Removed)
}

func TestBuildPreservesRemoteMode(t *testing.T) {
	ref := remoteRef("run.sh", "#!/bin/sh\n")
	ref.Mode = object.TreeModeExecutable
	res := Build([]object.FileEntry{file("run.sh", "#!/bin/sh\n")}, []object.BlobRef{ref})
	require.Len(t, res.Reuse, 1)
	assert.Equal(t, object.TreeModeExecutable, res.Reuse[0].Mode)
}

func TestBuildIgnoresNonBlobEntries(t *testing.T) {
	remote := []object.BlobRef{
		{Path: "dir", Hash: "4b825dc642cb6eb9a060e54bf8d69288fbee4904", Mode: object.TreeModeDir, Kind: object.TypeTree},
		remoteRef("dir/a", "a"),
	}
	res := Build([]object.FileEntry{file("dir/a", "a")}, remote)
	assert.True(t, res.Unchanged())
	assert.Empty(t, res.Removed)
}

func TestUnchanged(t *testing.T) {
	remote := []object.BlobRef{remoteRef("a.txt", "x")}
	assert.True(t, Build([]object.FileEntry{file("a.txt", "x")}, remote).Unchanged())
	assert.True(t, Build(nil, nil).Unchanged())

	// Omission alone is a change.
	deletion := Build(nil, remote)
	assert.False(t, deletion.Unchanged())
	assert.Empty(t, deletion.Upload)
}

func TestTreeDropsOmittedPaths(t *testing.T) {
	remote := []object.BlobRef{remoteRef("keep.txt", "k"), remoteRef("drop.txt", "d")}
	res := Build([]object.FileEntry{file("keep.txt", "k"), file("new.txt", "n")}, remote)

	tree, err := res.Tree([]object.BlobRef{remoteRef("new.txt", "n")})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "new.txt"}, tree.Paths())
}

func TestTreeRejectsDuplicates(t *testing.T) {
	res := Result{Reuse: []object.BlobRef{remoteRef("a", "1")}}
	_, err := res.Tree([]object.BlobRef{remoteRef("a", "2")})
	require.Error(t, err)
}
