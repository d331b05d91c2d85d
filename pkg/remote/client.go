package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"

	"github.com/odvcencio/treesync/pkg/object"
)

// DefaultBaseURL is the public GitHub REST API root.
const DefaultBaseURL = "https://api.github.com/"

// Credentials are supplied by the caller per operation. Token is an opaque
// bearer token; Owner is the account (user or organization) repositories
// live under.
type Credentials struct {
	Token        string
	Owner        string
	Organization bool
}

// Validate returns ErrMissingCredentials when Token or Owner is empty.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Token) == "" && strings.TrimSpace(c.Owner) == "" {
		return ErrMissingCredentials
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("token: %w", ErrMissingCredentials)
	}
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("owner: %w", ErrMissingCredentials)
	}
	return nil
}

// ClientOptions configures the remote client. Zero-value fields receive
// defaults (public API root, 60s timeout, executor defaults).
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Executor   ExecutorOptions
	Logger     *slog.Logger
}

// Client talks to a Git Data REST API. Every method is wrapped by the
// rate-limit executor.
type Client struct {
	gh     *github.Client
	creds  Credentials
	exec   *Executor
	logger *slog.Logger
}

// NewClient creates a Client authenticated with creds.Token.
func NewClient(ctx context.Context, creds Credentials, opts ClientOptions) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Executor.Logger == nil {
		opts.Executor.Logger = opts.Logger
	}

	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(creds.Token)})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = opts.Timeout

	gh := github.NewClient(httpClient)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		u, err := parseBaseURL(base)
		if err != nil {
			return nil, err
		}
		gh.BaseURL = u
	}

	return &Client{
		gh:     gh,
		creds:  creds,
		exec:   NewExecutor(opts.Executor),
		logger: opts.Logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API base URL %q must include scheme and host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Owner returns the default owner from the client's credentials.
func (c *Client) Owner() string { return c.creds.Owner }

// Executor returns the executor wrapping every call.
func (c *Client) Executor() *Executor { return c.exec }

// Repository is the subset of remote repository metadata the engine uses.
type Repository struct {
	Repo          Repo
	HTMLURL       string
	DefaultBranch string
	Private       bool
}

// BranchURL returns the browser URL of branch inside the repository.
func (r Repository) BranchURL(branch string) string {
	return strings.TrimRight(r.HTMLURL, "/") + "/tree/" + object.ShortBranch(branch)
}

func toRepository(repo Repo, gr *github.Repository) Repository {
	out := Repository{
		Repo:          repo,
		HTMLURL:       gr.GetHTMLURL(),
		DefaultBranch: gr.GetDefaultBranch(),
		Private:       gr.GetPrivate(),
	}
	if login := gr.GetOwner().GetLogin(); login != "" {
		out.Repo.Owner = login
	}
	if name := gr.GetName(); name != "" {
		out.Repo.Name = name
	}
	if out.DefaultBranch == "" {
		out.DefaultBranch = "main"
	}
	return out
}

// GetRepository reads repository metadata. A missing repository yields an
// error matching ErrNotFound.
func (c *Client) GetRepository(ctx context.Context, repo Repo) (Repository, error) {
	gr, err := Call(ctx, c.exec, "get repository "+repo.String(), func(ctx context.Context) (*github.Repository, *github.Response, error) {
		return c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
	})
	if err != nil {
		return Repository{}, err
	}
	return toRepository(repo, gr), nil
}

// RepositorySpec describes a repository to create.
type RepositorySpec struct {
	Name        string
	Description string
	Private     bool
	AutoInit    bool
}

// CreateRepository creates a repository under the credentials' owner.
func (c *Client) CreateRepository(ctx context.Context, spec RepositorySpec) (Repository, error) {
	org := ""
	if c.creds.Organization {
		org = c.creds.Owner
	}
	req := &github.Repository{
		Name:     github.String(spec.Name),
		Private:  github.Bool(spec.Private),
		AutoInit: github.Bool(spec.AutoInit),
	}
	if spec.Description != "" {
		req.Description = github.String(spec.Description)
	}
	gr, err := Call(ctx, c.exec, "create repository "+spec.Name, func(ctx context.Context) (*github.Repository, *github.Response, error) {
		return c.gh.Repositories.Create(ctx, org, req)
	})
	if err != nil {
		return Repository{}, err
	}
	return toRepository(Repo{Owner: c.creds.Owner, Name: spec.Name}, gr), nil
}

// GetBranch resolves a branch to its commit. A missing branch is not an
// error: the returned pointer has Exists set to false.
func (c *Client) GetBranch(ctx context.Context, repo Repo, branch string) (object.BranchPointer, error) {
	name := object.ShortBranch(branch)
	ref, err := Call(ctx, c.exec, "get ref heads/"+name, func(ctx context.Context) (*github.Reference, *github.Response, error) {
		return c.gh.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+name)
	})
	if err != nil {
		if IsNotFound(err) {
			return object.BranchPointer{Name: name}, nil
		}
		return object.BranchPointer{}, err
	}
	sha := object.Hash(ref.GetObject().GetSHA())
	if err := object.ValidateHash(sha); err != nil {
		return object.BranchPointer{}, fmt.Errorf("ref heads/%s: %w", name, err)
	}
	return object.BranchPointer{Name: name, CommitHash: sha, Exists: true}, nil
}

// GetCommit reads a commit's tree and first parent.
func (c *Client) GetCommit(ctx context.Context, repo Repo, sha object.Hash) (object.CommitRef, error) {
	gc, err := Call(ctx, c.exec, "get commit "+sha.Short(), func(ctx context.Context) (*github.Commit, *github.Response, error) {
		return c.gh.Git.GetCommit(ctx, repo.Owner, repo.Name, string(sha))
	})
	if err != nil {
		return object.CommitRef{}, err
	}
	return toCommitRef(gc), nil
}

func toCommitRef(gc *github.Commit) object.CommitRef {
	out := object.CommitRef{
		Hash:     object.Hash(gc.GetSHA()),
		TreeHash: object.Hash(gc.GetTree().GetSHA()),
		Message:  gc.GetMessage(),
	}
	if len(gc.Parents) > 0 {
		out.ParentHash = object.Hash(gc.Parents[0].GetSHA())
	}
	return out
}

// TreeListing is a tree as returned by the remote. Entries include
// sub-tree entries when listed recursively; callers filter by Kind.
type TreeListing struct {
	Hash      object.Hash
	Entries   []object.BlobRef
	Truncated bool
}

// Blobs returns only the blob entries of the listing, in tree order.
func (t TreeListing) Blobs() []object.BlobRef {
	out := make([]object.BlobRef, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Kind == object.TypeBlob {
			out = append(out, e)
		}
	}
	return out
}

// GetTree lists a tree, optionally recursively.
func (c *Client) GetTree(ctx context.Context, repo Repo, sha object.Hash, recursive bool) (TreeListing, error) {
	gt, err := Call(ctx, c.exec, "get tree "+sha.Short(), func(ctx context.Context) (*github.Tree, *github.Response, error) {
		return c.gh.Git.GetTree(ctx, repo.Owner, repo.Name, string(sha), recursive)
	})
	if err != nil {
		return TreeListing{}, err
	}
	out := TreeListing{
		Hash:      object.Hash(gt.GetSHA()),
		Entries:   make([]object.BlobRef, 0, len(gt.Entries)),
		Truncated: gt.GetTruncated(),
	}
	for _, e := range gt.Entries {
		out.Entries = append(out.Entries, object.BlobRef{
			Path: e.GetPath(),
			Hash: object.Hash(e.GetSHA()),
			Mode: e.GetMode(),
			Kind: object.ObjectType(e.GetType()),
		})
	}
	return out, nil
}

// CreateBlob uploads content as a base64 blob and returns its id.
func (c *Client) CreateBlob(ctx context.Context, repo Repo, content []byte) (object.Hash, error) {
	blob := &github.Blob{
		Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		Encoding: github.String("base64"),
	}
	gb, err := Call(ctx, c.exec, "create blob", func(ctx context.Context) (*github.Blob, *github.Response, error) {
		return c.gh.Git.CreateBlob(ctx, repo.Owner, repo.Name, blob)
	})
	if err != nil {
		return "", err
	}
	return object.Hash(gb.GetSHA()), nil
}

// GetBlob downloads a blob and decodes its content.
func (c *Client) GetBlob(ctx context.Context, repo Repo, sha object.Hash) ([]byte, error) {
	gb, err := Call(ctx, c.exec, "get blob "+sha.Short(), func(ctx context.Context) (*github.Blob, *github.Response, error) {
		return c.gh.Git.GetBlob(ctx, repo.Owner, repo.Name, string(sha))
	})
	if err != nil {
		return nil, err
	}
	return decodeBlobContent(gb.GetEncoding(), gb.GetContent())
}

func decodeBlobContent(encoding, content string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, content)
		data, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("decode base64 blob: %w", err)
		}
		return data, nil
	case "", "utf-8", "utf8":
		return []byte(content), nil
	default:
		return nil, fmt.Errorf("unsupported blob encoding %q", encoding)
	}
}

// CreateTree submits the complete flat path set of spec. No base tree is
// used, so any path missing from spec is absent from the new tree.
func (c *Client) CreateTree(ctx context.Context, repo Repo, spec object.TreeSpec) (object.Hash, error) {
	entries := make([]*github.TreeEntry, 0, len(spec.Entries))
	for _, e := range spec.Entries {
		entries = append(entries, &github.TreeEntry{
			Path: github.String(e.Path),
			Mode: github.String(e.Mode),
			Type: github.String(string(e.Kind)),
			SHA:  github.String(string(e.Hash)),
		})
	}
	gt, err := Call(ctx, c.exec, "create tree", func(ctx context.Context) (*github.Tree, *github.Response, error) {
		return c.gh.Git.CreateTree(ctx, repo.Owner, repo.Name, "", entries)
	})
	if err != nil {
		return "", err
	}
	return object.Hash(gt.GetSHA()), nil
}

// CreateCommit creates a commit of tree with a single parent.
func (c *Client) CreateCommit(ctx context.Context, repo Repo, message string, tree, parent object.Hash) (object.CommitRef, error) {
	commit := &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(string(tree))},
	}
	if parent != "" {
		commit.Parents = []*github.Commit{{SHA: github.String(string(parent))}}
	}
	gc, err := Call(ctx, c.exec, "create commit", func(ctx context.Context) (*github.Commit, *github.Response, error) {
		return c.gh.Git.CreateCommit(ctx, repo.Owner, repo.Name, commit)
	})
	if err != nil {
		return object.CommitRef{}, err
	}
	out := toCommitRef(gc)
	if out.TreeHash == "" {
		out.TreeHash = tree
	}
	if out.ParentHash == "" {
		out.ParentHash = parent
	}
	if out.Message == "" {
		out.Message = message
	}
	return out, nil
}

// CreateRef points a new branch at sha.
func (c *Client) CreateRef(ctx context.Context, repo Repo, branch string, sha object.Hash) error {
	ref := &github.Reference{
		Ref:    github.String(object.BranchRef(branch)),
		Object: &github.GitObject{SHA: github.String(string(sha))},
	}
	return Do(ctx, c.exec, "create ref "+object.BranchRef(branch), func(ctx context.Context) (*github.Response, error) {
		_, resp, err := c.gh.Git.CreateRef(ctx, repo.Owner, repo.Name, ref)
		return resp, err
	})
}

// UpdateRef moves an existing branch to sha.
func (c *Client) UpdateRef(ctx context.Context, repo Repo, branch string, sha object.Hash, force bool) error {
	ref := &github.Reference{
		Ref:    github.String(object.BranchRef(branch)),
		Object: &github.GitObject{SHA: github.String(string(sha))},
	}
	return Do(ctx, c.exec, "update ref "+object.BranchRef(branch), func(ctx context.Context) (*github.Response, error) {
		_, resp, err := c.gh.Git.UpdateRef(ctx, repo.Owner, repo.Name, ref, force)
		return resp, err
	})
}

// PullRequestSpec describes a pull request to open.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// PullRequest is the caller-visible result of opening a pull request.
type PullRequest struct {
	URL    string
	Number int
	State  string
}

// CreatePullRequest opens a pull request from spec.Head into spec.Base.
func (c *Client) CreatePullRequest(ctx context.Context, repo Repo, spec PullRequestSpec) (PullRequest, error) {
	req := &github.NewPullRequest{
		Title: github.String(spec.Title),
		Head:  github.String(object.ShortBranch(spec.Head)),
		Base:  github.String(object.ShortBranch(spec.Base)),
	}
	if spec.Body != "" {
		req.Body = github.String(spec.Body)
	}
	pr, err := Call(ctx, c.exec, "create pull request", func(ctx context.Context) (*github.PullRequest, *github.Response, error) {
		return c.gh.PullRequests.Create(ctx, repo.Owner, repo.Name, req)
	})
	if err != nil {
		return PullRequest{}, err
	}
	return PullRequest{URL: pr.GetHTMLURL(), Number: pr.GetNumber(), State: pr.GetState()}, nil
}
