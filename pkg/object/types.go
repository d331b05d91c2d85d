package object

import (
	"fmt"
	"sort"
	"strings"
)

// HashLength is the hex length of a SHA-1 object id.
const HashLength = 40

// Hash is a 40-character hex-encoded SHA-1 object id.
type Hash string

// String returns the hash as a plain string.
func (h Hash) String() string { return string(h) }

// Short returns the abbreviated form used in log lines.
func (h Hash) Short() string {
	if len(h) <= 7 {
		return string(h)
	}
	return string(h[:7])
}

// ObjectType identifies the kind of remote object.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "040000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
)

// FileEntry is the caller's desired state for one file. Path is a relative
// POSIX path; uniqueness within a request is the caller's responsibility.
type FileEntry struct {
	Path    string
	Content []byte
}

// BlobRef is the remote identity of a file's content at a path.
type BlobRef struct {
	Path string
	Hash Hash
	Mode string
	Kind ObjectType
}

// NewBlobRef returns a regular-file blob reference for path.
func NewBlobRef(path string, hash Hash) BlobRef {
	return BlobRef{Path: path, Hash: hash, Mode: TreeModeFile, Kind: TypeBlob}
}

// TreeSpec is the complete directory state for one commit, sorted by path.
type TreeSpec struct {
	Entries []BlobRef
}

// NewTreeSpec sorts refs by path and rejects duplicate or empty paths.
// Refs with no mode or kind get the regular-file defaults.
func NewTreeSpec(refs []BlobRef) (TreeSpec, error) {
	entries := make([]BlobRef, len(refs))
	copy(entries, refs)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	for i := range entries {
		if strings.TrimSpace(entries[i].Path) == "" {
			return TreeSpec{}, fmt.Errorf("tree entry %d has an empty path", i)
		}
		if i > 0 && entries[i].Path == entries[i-1].Path {
			return TreeSpec{}, fmt.Errorf("duplicate tree path %q", entries[i].Path)
		}
		if entries[i].Mode == "" {
			entries[i].Mode = TreeModeFile
		}
		if entries[i].Kind == "" {
			entries[i].Kind = TypeBlob
		}
	}
	return TreeSpec{Entries: entries}, nil
}

// Paths returns the entry paths in tree order.
func (t TreeSpec) Paths() []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Path
	}
	return out
}

// CommitRef is an immutable commit created on the remote.
type CommitRef struct {
	Hash       Hash
	TreeHash   Hash
	ParentHash Hash
	Message    string
}

// BranchPointer is a named, mutable pointer to a commit. Exists reports
// whether the remote had a ref for Name when it was resolved.
type BranchPointer struct {
	Name       string
	CommitHash Hash
	Exists     bool
}

// RefName returns the fully qualified ref name for the branch.
func (b BranchPointer) RefName() string {
	return BranchRef(b.Name)
}

// BranchRef qualifies a short branch name as refs/heads/<name>.
func BranchRef(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + strings.TrimPrefix(name, "heads/")
}

// ShortBranch strips refs/heads/ (or heads/) from a ref name.
func ShortBranch(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "refs/")
	return strings.TrimPrefix(ref, "heads/")
}
