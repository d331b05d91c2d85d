package treesync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/odvcencio/treesync/pkg/remote"
)

// MaxDescriptionLength caps repository descriptions, in runes.
const MaxDescriptionLength = 350

// RepoRequest describes a repository to ensure.
type RepoRequest struct {
	Name        string
	Description string
	Private     bool
}

// RepoInfo is the result of EnsureRepository.
type RepoInfo struct {
	Repository remote.Repository
	URL        string
	Created    bool
}

// Bootstrapper makes sure a repository exists before a first sync.
type Bootstrapper struct {
	remote Remote
	logger *slog.Logger
}

// NewBootstrapper returns a Bootstrapper using r.
func NewBootstrapper(r Remote, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = discardLogger()
	}
	return &Bootstrapper{remote: r, logger: logger}
}

// EnsureRepository returns the repository named by req, creating it with an
// initialized default branch when it does not exist. An existing repository
// is never an error.
func (b *Bootstrapper) EnsureRepository(ctx context.Context, req RepoRequest) (RepoInfo, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return RepoInfo{}, fmt.Errorf("repository name is required")
	}
	repo := remote.Repo{Owner: b.remote.Owner(), Name: name}

	existing, err := b.remote.GetRepository(ctx, repo)
	if err == nil {
		b.logger.Info("repository exists", "repo", repo.String(), "url", existing.HTMLURL)
		return RepoInfo{Repository: existing, URL: existing.HTMLURL}, nil
	}
	if !remote.IsNotFound(err) {
		return RepoInfo{}, fmt.Errorf("look up repository %s: %w", repo, err)
	}

	created, err := b.remote.CreateRepository(ctx, remote.RepositorySpec{
		Name:        name,
		Description: SanitizeDescription(req.Description),
		Private:     req.Private,
		// The first sync needs a parent commit.
		AutoInit: true,
	})
	if err != nil {
		return RepoInfo{}, fmt.Errorf("create repository %s: %w", repo, err)
	}
	b.logger.Info("repository created", "repo", repo.String(), "url", created.HTMLURL, "private", req.Private)
	return RepoInfo{Repository: created, URL: created.HTMLURL, Created: true}, nil
}

// SanitizeDescription drops control characters, collapses runs of
// whitespace, trims, and truncates to MaxDescriptionLength runes.
func SanitizeDescription(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := []rune(b.String())
	if len(out) > MaxDescriptionLength {
		out = out[:MaxDescriptionLength]
	}
	return strings.TrimSpace(string(out))
}
