package treesync

import (
	"context"

	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
)

// Remote is the subset of the Git Data API the engine drives. It is
// satisfied by *remote.Client.
type Remote interface {
	Owner() string
	GetRepository(ctx context.Context, repo remote.Repo) (remote.Repository, error)
	CreateRepository(ctx context.Context, spec remote.RepositorySpec) (remote.Repository, error)
	GetBranch(ctx context.Context, repo remote.Repo, branch string) (object.BranchPointer, error)
	GetCommit(ctx context.Context, repo remote.Repo, sha object.Hash) (object.CommitRef, error)
	GetTree(ctx context.Context, repo remote.Repo, sha object.Hash, recursive bool) (remote.TreeListing, error)
	CreateBlob(ctx context.Context, repo remote.Repo, content []byte) (object.Hash, error)
	GetBlob(ctx context.Context, repo remote.Repo, sha object.Hash) ([]byte, error)
	CreateTree(ctx context.Context, repo remote.Repo, spec object.TreeSpec) (object.Hash, error)
	CreateCommit(ctx context.Context, repo remote.Repo, message string, tree, parent object.Hash) (object.CommitRef, error)
	CreateRef(ctx context.Context, repo remote.Repo, branch string, sha object.Hash) error
	UpdateRef(ctx context.Context, repo remote.Repo, branch string, sha object.Hash, force bool) error
	CreatePullRequest(ctx context.Context, repo remote.Repo, spec remote.PullRequestSpec) (remote.PullRequest, error)
}

var _ Remote = (*remote.Client)(nil)
