package treesync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odvcencio/treesync/pkg/batch"
	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
)

// Reader reconstructs the file set of a branch.
type Reader struct {
	remote   Remote
	download batch.Options
	logger   *slog.Logger
}

// NewReader returns a Reader. A zero download means batch.DownloadPacing.
func NewReader(r Remote, download batch.Options, logger *slog.Logger) *Reader {
	if download.Size <= 0 {
		download = batch.DownloadPacing.WithClock(download.Clock)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Reader{remote: r, download: download, logger: logger}
}

// ReadTree resolves branch to its recursive tree and downloads every blob.
// Entries are returned in tree order. A missing branch yields
// ErrBranchNotFound.
func (rd *Reader) ReadTree(ctx context.Context, repo remote.Repo, branch string) ([]object.FileEntry, error) {
	head, err := rd.remote.GetBranch(ctx, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	if !head.Exists {
		return nil, fmt.Errorf("%s: %w", object.ShortBranch(branch), ErrBranchNotFound)
	}
	commit, err := rd.remote.GetCommit(ctx, repo, head.CommitHash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", head.CommitHash.Short(), err)
	}
	listing, err := rd.remote.GetTree(ctx, repo, commit.TreeHash, true)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", commit.TreeHash.Short(), err)
	}
	if listing.Truncated {
		return nil, fmt.Errorf("tree %s is too large to list recursively", commit.TreeHash.Short())
	}
	blobs := listing.Blobs()

	rd.logger.Info("reading branch", "repo", repo.String(), "branch", head.Name, "commit", head.CommitHash.Short(), "files", len(blobs))
	return batch.Run(ctx, blobs, rd.download, func(ctx context.Context, ref object.BlobRef, _ int) (object.FileEntry, error) {
		content, err := rd.remote.GetBlob(ctx, repo, ref.Hash)
		if err != nil {
			return object.FileEntry{}, fmt.Errorf("download %s: %w", ref.Path, err)
		}
		if got := object.HashBlob(content); got != ref.Hash {
			return object.FileEntry{}, fmt.Errorf("download %s: content hash %s does not match blob id %s", ref.Path, got, ref.Hash)
		}
		return object.FileEntry{Path: ref.Path, Content: content}, nil
	})
}
