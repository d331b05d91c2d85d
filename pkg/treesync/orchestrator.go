package treesync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odvcencio/treesync/pkg/batch"
	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/plan"
	"github.com/odvcencio/treesync/pkg/remote"
)

// DefaultBaseBranch is used when a new branch is created and neither the
// target nor the orchestrator names a base.
const DefaultBaseBranch = "main"

// Target identifies the branch a sync writes to.
type Target struct {
	Repo remote.Repo
	// Repository, when known, supplies browser URLs for results and errors.
	Repository remote.Repository
	Branch     string
	// CreateBranch allows a missing branch to be created from BaseBranch.
	// Without it a missing branch fails the sync with ErrBranchNotFound.
	CreateBranch bool
	BaseBranch   string
	Message      string
}

func (t Target) repoURL() string {
	return t.Repository.HTMLURL
}

// Outcome describes a completed sync.
type Outcome struct {
	// Commit is the new commit, or the current head when NoChanges is set.
	Commit object.CommitRef
	Branch object.BranchPointer
	// Created is set when the branch did not exist before the sync.
	Created   bool
	NoChanges bool
	Uploaded  int
	Reused    int
	Removed   int
	BranchURL string
}

// Preview is the result of resolving and diffing a target without writing.
type Preview struct {
	Branch object.BranchPointer
	Parent object.CommitRef
	Create bool
	Plan   plan.Result
	modes  map[string]string
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	// BaseBranch is the fallback base for new branches.
	BaseBranch string
	// Upload paces blob creation. Zero value means batch.UploadPacing.
	Upload batch.Options
	Logger *slog.Logger
}

// Orchestrator drives one sync through its steps: resolve-parent, diff,
// upload, build-tree, create-commit and move-ref. Steps run strictly in
// order; the first failure aborts the rest.
//
// The desired file set replaces the branch tree entirely. Paths on the
// branch that are not in the desired set are absent from the new commit.
type Orchestrator struct {
	remote     Remote
	baseBranch string
	upload     batch.Options
	logger     *slog.Logger
}

// NewOrchestrator returns an Orchestrator writing through r.
func NewOrchestrator(r Remote, opts OrchestratorOptions) *Orchestrator {
	if strings.TrimSpace(opts.BaseBranch) == "" {
		opts.BaseBranch = DefaultBaseBranch
	}
	if opts.Upload.Size <= 0 {
		opts.Upload = batch.UploadPacing.WithClock(opts.Upload.Clock)
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return &Orchestrator{
		remote:     r,
		baseBranch: opts.BaseBranch,
		upload:     opts.Upload,
		logger:     opts.Logger,
	}
}

// DefaultCommitMessage is used when a target carries no message.
const DefaultCommitMessage = "Sync files"

// Plan runs resolve-parent and diff without writing anything.
func (o *Orchestrator) Plan(ctx context.Context, target Target, files []object.FileEntry) (*Preview, error) {
	if strings.TrimSpace(target.Branch) == "" {
		return nil, o.fail(target, StepResolveParent, fmt.Errorf("branch name is required"))
	}
	branch, create, err := o.resolveParent(ctx, target)
	if err != nil {
		return nil, o.fail(target, StepResolveParent, err)
	}
	preview, err := o.diff(ctx, target.Repo, branch.CommitHash, files)
	if err != nil {
		return nil, o.fail(target, StepDiff, err)
	}
	preview.Branch = branch
	preview.Create = create

	o.logger.Info("sync plan",
		"repo", target.Repo.String(),
		"branch", target.Branch,
		"create", create,
		"upload", len(preview.Plan.Upload),
		"reuse", len(preview.Plan.Reuse),
		"removed", len(preview.Plan.Removed),
	)
	return preview, nil
}

// Sync writes files as the complete tree of target.Branch. When nothing
// differs from the current head no commit is created and NoChanges is set.
// A failure is returned as a *StepError. When blobs or a tree had already
// been written the StepError is wrapped in a *PartialFailureError; nothing
// is removed, so calling Sync again with the same input is safe.
func (o *Orchestrator) Sync(ctx context.Context, target Target, files []object.FileEntry) (*Outcome, error) {
	preview, err := o.Plan(ctx, target, files)
	if err != nil {
		return nil, err
	}
	res := preview.Plan
	out := &Outcome{
		Branch:  preview.Branch,
		Created: preview.Create,
		Reused:  len(res.Reuse),
		Removed: len(res.Removed),
	}
	if target.Repository.HTMLURL != "" {
		out.BranchURL = target.Repository.BranchURL(target.Branch)
	}

	if res.Unchanged() {
		out.NoChanges = true
		out.Commit = preview.Parent
		if preview.Create {
			// Identical content on a new branch: point it at the base commit.
			if err := o.moveRef(ctx, target.Repo, preview, preview.Parent.Hash); err != nil {
				return nil, o.fail(target, StepMoveRef, err)
			}
			out.Branch.Exists = true
		}
		o.logger.Info("no changes to sync", "repo", target.Repo.String(), "branch", target.Branch)
		return out, nil
	}

	uploaded, err := o.uploadBlobs(ctx, target.Repo, res.Upload, preview.modes)
	if err != nil {
		return nil, o.fail(target, StepUpload, err)
	}
	out.Uploaded = len(uploaded)

	spec, err := res.Tree(uploaded)
	if err != nil {
		return nil, o.partial(target, out.Uploaded > 0, o.fail(target, StepBuildTree, err))
	}
	tree, err := o.remote.CreateTree(ctx, target.Repo, spec)
	if err != nil {
		return nil, o.partial(target, out.Uploaded > 0, o.fail(target, StepBuildTree, err))
	}

	message := strings.TrimSpace(target.Message)
	if message == "" {
		message = DefaultCommitMessage
	}
	commit, err := o.remote.CreateCommit(ctx, target.Repo, message, tree, preview.Parent.Hash)
	if err != nil {
		return nil, o.partial(target, true, o.fail(target, StepCreateCommit, err))
	}

	if err := o.moveRef(ctx, target.Repo, preview, commit.Hash); err != nil {
		return nil, o.partial(target, true, o.fail(target, StepMoveRef, err))
	}

	out.Commit = commit
	out.Branch.CommitHash = commit.Hash
	out.Branch.Exists = true
	o.logger.Info("sync complete",
		"repo", target.Repo.String(),
		"branch", target.Branch,
		"commit", commit.Hash.Short(),
		"created", preview.Create,
		"uploaded", out.Uploaded,
	)
	return out, nil
}

func (o *Orchestrator) fail(target Target, step Step, err error) error {
	o.logger.Error("sync step failed", "repo", target.Repo.String(), "branch", target.Branch, "step", string(step), "error", err)
	return &StepError{Step: step, RepoURL: target.repoURL(), Err: err}
}

// partial marks err as a partial failure when the sync already wrote
// objects to the remote.
func (o *Orchestrator) partial(target Target, written bool, err error) error {
	if !written {
		return err
	}
	return &PartialFailureError{RepoURL: target.repoURL(), Err: err}
}

// resolveParent returns the branch pointer whose CommitHash is the parent
// of the next commit, and whether the branch has to be created.
func (o *Orchestrator) resolveParent(ctx context.Context, target Target) (object.BranchPointer, bool, error) {
	head, err := o.remote.GetBranch(ctx, target.Repo, target.Branch)
	if err != nil {
		return object.BranchPointer{}, false, err
	}
	if head.Exists {
		return head, false, nil
	}
	if !target.CreateBranch {
		return object.BranchPointer{}, false, fmt.Errorf("%s: %w", target.Branch, ErrBranchNotFound)
	}

	base := strings.TrimSpace(target.BaseBranch)
	if base == "" {
		base = o.baseBranch
	}
	baseHead, err := o.remote.GetBranch(ctx, target.Repo, base)
	if err != nil {
		return object.BranchPointer{}, false, err
	}
	if !baseHead.Exists {
		return object.BranchPointer{}, false, fmt.Errorf("base branch %s: %w", base, ErrBranchNotFound)
	}
	o.logger.Debug("branch will be created", "branch", target.Branch, "base", base, "parent", baseHead.CommitHash.Short())
	return object.BranchPointer{Name: object.ShortBranch(target.Branch), CommitHash: baseHead.CommitHash}, true, nil
}

func (o *Orchestrator) diff(ctx context.Context, repo remote.Repo, parent object.Hash, files []object.FileEntry) (*Preview, error) {
	commit, err := o.remote.GetCommit(ctx, repo, parent)
	if err != nil {
		return nil, err
	}
	listing, err := o.remote.GetTree(ctx, repo, commit.TreeHash, true)
	if err != nil {
		return nil, err
	}
	if listing.Truncated {
		return nil, fmt.Errorf("tree %s is too large to list recursively", commit.TreeHash.Short())
	}
	blobs := listing.Blobs()
	modes := make(map[string]string, len(blobs))
	for _, b := range blobs {
		modes[b.Path] = b.Mode
	}
	return &Preview{
		Parent: commit,
		Plan:   plan.Build(files, blobs),
		modes:  modes,
	}, nil
}

// uploadBlobs creates a blob for every entry. The id returned by the remote
// must equal the locally computed hash. A changed file keeps the mode it had
// on the remote.
func (o *Orchestrator) uploadBlobs(ctx context.Context, repo remote.Repo, files []object.FileEntry, modes map[string]string) ([]object.BlobRef, error) {
	return batch.Run(ctx, files, o.upload, func(ctx context.Context, f object.FileEntry, _ int) (object.BlobRef, error) {
		want := object.HashBlob(f.Content)
		got, err := o.remote.CreateBlob(ctx, repo, f.Content)
		if err != nil {
			return object.BlobRef{}, fmt.Errorf("upload %s: %w", f.Path, err)
		}
		if got != want {
			return object.BlobRef{}, fmt.Errorf("upload %s: remote blob id %s does not match content hash %s", f.Path, got, want)
		}
		ref := object.NewBlobRef(f.Path, got)
		if mode, ok := modes[f.Path]; ok && mode != "" {
			ref.Mode = mode
		}
		o.logger.Debug("blob uploaded", "path", f.Path, "sha", got.Short())
		return ref, nil
	})
}

func (o *Orchestrator) moveRef(ctx context.Context, repo remote.Repo, preview *Preview, sha object.Hash) error {
	if preview.Create {
		return o.remote.CreateRef(ctx, repo, preview.Branch.Name, sha)
	}
	// Force: callers do not guarantee history is linear.
	return o.remote.UpdateRef(ctx, repo, preview.Branch.Name, sha, true)
}
