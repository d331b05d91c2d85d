// Package plan partitions a desired file set against a remote tree.
//
// Synchronization is a full replace of the target tree: the tree built from
// a Result contains only Reuse and uploaded entries. A remote path that is
// absent from the desired set is not carried forward, so omitting a file
// deletes it. There is no separate delete operation.
package plan

import (
	"sort"

	"github.com/odvcencio/treesync/pkg/object"
)

// Result is the outcome of planning one sync.
type Result struct {
	// Reuse holds remote blob refs whose path and content hash match a
	// desired entry. They are carried forward without an upload.
	Reuse []object.BlobRef
	// Upload holds desired entries that are new or whose content changed.
	Upload []object.FileEntry
	// Removed lists remote paths that the desired set omits.
	Removed []string
}

// Unchanged reports whether the desired set equals the remote tree.
func (r Result) Unchanged() bool {
	return len(r.Upload) == 0 && len(r.Removed) == 0
}

// Build classifies every desired entry as reuse or upload by comparing its
// local blob hash against the remote hash at the same path. Only blob
// entries of remote are considered. Desired order is preserved in Reuse and
// Upload; Removed is sorted.
func Build(desired []object.FileEntry, remote []object.BlobRef) Result {
	byPath := make(map[string]object.BlobRef, len(remote))
	for _, ref := range remote {
		if ref.Kind != "" && ref.Kind != object.TypeBlob {
			continue
		}
		byPath[ref.Path] = ref
	}

	var res Result
	wanted := make(map[string]struct{}, len(desired))
	for _, f := range desired {
		wanted[f.Path] = struct{}{}
		if ref, ok := byPath[f.Path]; ok && ref.Hash == object.HashBlob(f.Content) {
			res.Reuse = append(res.Reuse, ref)
			continue
		}
		res.Upload = append(res.Upload, f)
	}
	for p := range byPath {
		if _, ok := wanted[p]; !ok {
			res.Removed = append(res.Removed, p)
		}
	}
	sort.Strings(res.Removed)
	return res
}

// Tree assembles the full tree spec from the reused refs and the refs of
// freshly uploaded blobs.
func (r Result) Tree(uploaded []object.BlobRef) (object.TreeSpec, error) {
	refs := make([]object.BlobRef, 0, len(r.Reuse)+len(uploaded))
	refs = append(refs, r.Reuse...)
	refs = append(refs, uploaded...)
	return object.NewTreeSpec(refs)
}
