// Package treesync reconciles a desired file set against a remote Git
// hosting API. Every write is a full replace of the target branch tree:
// a path that exists on the branch but is missing from the desired files
// is deleted by the resulting commit.
package treesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/odvcencio/treesync/pkg/batch"
	"github.com/odvcencio/treesync/pkg/clock"
	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
)

const (
	// DefaultSettleDelay is waited after creating and populating a
	// repository, since the remote can lag in reporting the latest commit.
	DefaultSettleDelay = 2 * time.Second

	// InitialCommitMessage is used for the first sync of a new repository.
	InitialCommitMessage = "Initial commit"
)

// Options configures an Engine. Zero values receive defaults.
type Options struct {
	// Client configures the remote client built for each call.
	Client remote.ClientOptions
	// DefaultBranch is used when the remote does not report one.
	DefaultBranch string
	// BaseBranch is the base for new branches. Empty means the
	// repository's default branch.
	BaseBranch string
	// SettleDelay follows repository creation. Negative disables it.
	SettleDelay time.Duration
	// Private marks repositories created by CreateRepository.
	Private  bool
	Upload   batch.Options
	Download batch.Options
	Clock    clock.Clock
	Logger   *slog.Logger

	// Connect overrides how a Remote is built from credentials.
	Connect func(ctx context.Context, creds remote.Credentials) (Remote, error)
}

// Engine exposes the caller-facing operations. Credentials are supplied per
// call and never stored.
type Engine struct {
	opts Options
}

// New returns an Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if strings.TrimSpace(opts.DefaultBranch) == "" {
		opts.DefaultBranch = DefaultBaseBranch
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Upload.Size <= 0 {
		opts.Upload = batch.UploadPacing
	}
	if opts.Download.Size <= 0 {
		opts.Download = batch.DownloadPacing
	}
	if opts.Upload.Clock == nil {
		opts.Upload.Clock = opts.Clock
	}
	if opts.Download.Clock == nil {
		opts.Download.Clock = opts.Clock
	}
	if opts.Client.Executor.Clock == nil {
		opts.Client.Executor.Clock = opts.Clock
	}
	if opts.Client.Logger == nil {
		opts.Client.Logger = opts.Logger
	}
	return &Engine{opts: opts}
}

// RepoResult is returned by CreateRepository.
type RepoResult struct {
	URL     string
	Created bool
	// Commit is the initial sync commit; empty when the repository
	// already existed or the files matched the initialized tree.
	Commit object.Hash
}

// SyncResult is returned by SyncFullRepository.
type SyncResult struct {
	OK        bool
	NoChanges bool
	Commit    object.Hash
}

// BranchResult is returned by SyncBranch.
type BranchResult struct {
	BranchURL string
	CommitID  object.Hash
	Created   bool
	NoChanges bool
}

// BranchURLResult is returned by CreateBranch.
type BranchURLResult struct {
	URL     string
	Created bool
}

// CreateRepository ensures a repository named name exists. When it is
// created, files become the complete tree of its default branch and the
// call waits for the settle delay before returning. An existing repository
// is returned untouched with Created false. A failure after creation is a
// *PartialFailureError carrying the repository URL.
func (e *Engine) CreateRepository(ctx context.Context, name, description string, files []object.FileEntry, creds remote.Credentials) (RepoResult, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return RepoResult{}, err
	}
	info, err := NewBootstrapper(client, e.opts.Logger).EnsureRepository(ctx, RepoRequest{
		Name:        name,
		Description: description,
		Private:     e.opts.Private,
	})
	if err != nil {
		return RepoResult{}, err
	}
	res := RepoResult{URL: info.URL, Created: info.Created}
	if !info.Created {
		return res, nil
	}

	out, err := e.orchestrator(client).Sync(ctx, Target{
		Repo:       info.Repository.Repo,
		Repository: info.Repository,
		Branch:     e.defaultBranch(info.Repository),
		Message:    InitialCommitMessage,
	}, files)
	if err != nil {
		var pf *PartialFailureError
		if errors.As(err, &pf) {
			pf.RepoURL, pf.RepositoryCreated = info.URL, true
			return res, pf
		}
		return res, &PartialFailureError{RepoURL: info.URL, RepositoryCreated: true, Err: err}
	}
	if !out.NoChanges {
		res.Commit = out.Commit.Hash
	}
	if e.opts.SettleDelay > 0 {
		if err := e.opts.Clock.Sleep(ctx, e.opts.SettleDelay); err != nil {
			return res, err
		}
	}
	return res, nil
}

// SyncFullRepository makes files the complete tree of the repository's
// default branch.
func (e *Engine) SyncFullRepository(ctx context.Context, repoName string, files []object.FileEntry, message string, creds remote.Credentials) (SyncResult, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return SyncResult{}, err
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return SyncResult{}, err
	}
	out, err := e.orchestrator(client).Sync(ctx, Target{
		Repo:       repo.Repo,
		Repository: repo,
		Branch:     e.defaultBranch(repo),
		Message:    message,
	}, files)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{OK: true, NoChanges: out.NoChanges, Commit: out.Commit.Hash}, nil
}

// SyncBranch makes files the complete tree of branch, creating the branch
// from the base branch when it does not exist.
func (e *Engine) SyncBranch(ctx context.Context, repoName, branch string, files []object.FileEntry, message string, creds remote.Credentials) (BranchResult, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return BranchResult{}, err
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return BranchResult{}, err
	}
	out, err := e.orchestrator(client).Sync(ctx, Target{
		Repo:         repo.Repo,
		Repository:   repo,
		Branch:       branch,
		CreateBranch: true,
		BaseBranch:   e.baseBranch(repo),
		Message:      message,
	}, files)
	if err != nil {
		return BranchResult{}, err
	}
	return BranchResult{
		BranchURL: out.BranchURL,
		CommitID:  out.Commit.Hash,
		Created:   out.Created,
		NoChanges: out.NoChanges,
	}, nil
}

// PlanBranch previews what SyncBranch would do without writing.
func (e *Engine) PlanBranch(ctx context.Context, repoName, branch string, files []object.FileEntry, creds remote.Credentials) (*Preview, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(branch) == "" {
		branch = e.defaultBranch(repo)
	}
	return e.orchestrator(client).Plan(ctx, Target{
		Repo:         repo.Repo,
		Repository:   repo,
		Branch:       branch,
		CreateBranch: true,
		BaseBranch:   e.baseBranch(repo),
	}, files)
}

// ReadRepository returns the files on branch. An empty branch means the
// repository's default branch.
func (e *Engine) ReadRepository(ctx context.Context, repoName, branch string, creds remote.Credentials) ([]object.FileEntry, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(branch) == "" {
		branch = e.defaultBranch(repo)
	}
	return NewReader(client, e.opts.Download, e.opts.Logger).ReadTree(ctx, repo.Repo, branch)
}

// CreateBranch points a new branch at the head of base. An existing branch
// is left as is and its URL returned.
func (e *Engine) CreateBranch(ctx context.Context, repoName, branch, base string, creds remote.Credentials) (BranchURLResult, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return BranchURLResult{}, err
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return BranchURLResult{}, err
	}
	if strings.TrimSpace(branch) == "" {
		return BranchURLResult{}, fmt.Errorf("branch name is required")
	}

	head, err := client.GetBranch(ctx, repo.Repo, branch)
	if err != nil {
		return BranchURLResult{}, err
	}
	if head.Exists {
		return BranchURLResult{URL: repo.BranchURL(branch)}, nil
	}

	if strings.TrimSpace(base) == "" {
		base = e.baseBranch(repo)
	}
	baseHead, err := client.GetBranch(ctx, repo.Repo, base)
	if err != nil {
		return BranchURLResult{}, err
	}
	if !baseHead.Exists {
		return BranchURLResult{}, fmt.Errorf("base branch %s: %w", base, ErrBranchNotFound)
	}
	if err := client.CreateRef(ctx, repo.Repo, branch, baseHead.CommitHash); err != nil {
		return BranchURLResult{}, err
	}
	e.opts.Logger.Info("branch created", "repo", repo.Repo.String(), "branch", branch, "base", base, "commit", baseHead.CommitHash.Short())
	return BranchURLResult{URL: repo.BranchURL(branch), Created: true}, nil
}

// CreatePullRequest opens a pull request from head into base. An empty base
// means the repository's default branch.
func (e *Engine) CreatePullRequest(ctx context.Context, repoName, title, body, head, base string, creds remote.Credentials) (remote.PullRequest, error) {
	client, err := e.connect(ctx, creds)
	if err != nil {
		return remote.PullRequest{}, err
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(head) == "" {
		return remote.PullRequest{}, fmt.Errorf("pull request title and head branch are required")
	}
	repo, err := e.repository(ctx, client, repoName, creds)
	if err != nil {
		return remote.PullRequest{}, err
	}
	if strings.TrimSpace(base) == "" {
		base = e.defaultBranch(repo)
	}
	pr, err := client.CreatePullRequest(ctx, repo.Repo, remote.PullRequestSpec{Title: title, Body: body, Head: head, Base: base})
	if err != nil {
		return remote.PullRequest{}, err
	}
	e.opts.Logger.Info("pull request opened", "repo", repo.Repo.String(), "number", pr.Number, "url", pr.URL)
	return pr, nil
}

func (e *Engine) connect(ctx context.Context, creds remote.Credentials) (Remote, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if e.opts.Connect != nil {
		return e.opts.Connect(ctx, creds)
	}
	return remote.NewClient(ctx, creds, e.opts.Client)
}

func (e *Engine) repository(ctx context.Context, client Remote, repoName string, creds remote.Credentials) (remote.Repository, error) {
	repo, err := remote.ParseRepo(repoName, creds.Owner)
	if err != nil {
		return remote.Repository{}, err
	}
	info, err := client.GetRepository(ctx, repo)
	if err != nil {
		if remote.IsNotFound(err) {
			return remote.Repository{}, fmt.Errorf("%s: %w: %w", repo, ErrRepositoryNotFound, err)
		}
		return remote.Repository{}, err
	}
	return info, nil
}

func (e *Engine) orchestrator(client Remote) *Orchestrator {
	return NewOrchestrator(client, OrchestratorOptions{
		BaseBranch: e.opts.DefaultBranch,
		Upload:     e.opts.Upload,
		Logger:     e.opts.Logger,
	})
}

func (e *Engine) defaultBranch(repo remote.Repository) string {
	if b := strings.TrimSpace(repo.DefaultBranch); b != "" {
		return b
	}
	return e.opts.DefaultBranch
}

func (e *Engine) baseBranch(repo remote.Repository) string {
	if b := strings.TrimSpace(e.opts.BaseBranch); b != "" {
		return b
	}
	return e.defaultBranch(repo)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
