package remote

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Repo identifies a repository on the remote by owner and name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses a repository reference. Supported inputs:
//   - name (owner taken from defaultOwner)
//   - owner/name
//   - https://host/owner/name and https://host/owner/name.git
//   - git@host:owner/name.git
func ParseRepo(raw, defaultOwner string) (Repo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repo{}, fmt.Errorf("repository is required")
	}

	var segments []string
	switch {
	case strings.HasPrefix(raw, "git@"):
		idx := strings.Index(raw, ":")
		if idx < 0 {
			return Repo{}, fmt.Errorf("invalid ssh repository %q", raw)
		}
		segments = splitPathSegments(raw[idx+1:])
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Repo{}, fmt.Errorf("parse repository URL: %w", err)
		}
		if u.Host == "" {
			return Repo{}, fmt.Errorf("repository URL must include a host")
		}
		segments = splitPathSegments(u.Path)
		if len(segments) < 2 {
			return Repo{}, fmt.Errorf("repository URL must include owner and repository")
		}
		segments = segments[len(segments)-2:]
	default:
		segments = splitPathSegments(raw)
	}

	var repo Repo
	switch len(segments) {
	case 1:
		repo = Repo{Owner: strings.TrimSpace(defaultOwner), Name: segments[0]}
	case 2:
		repo = Repo{Owner: segments[0], Name: segments[1]}
	default:
		return Repo{}, fmt.Errorf("invalid repository %q: expected owner/name", raw)
	}
	repo.Name = strings.TrimSuffix(repo.Name, ".git")
	if repo.Owner == "" {
		return Repo{}, fmt.Errorf("repository %q has no owner: %w", raw, ErrMissingCredentials)
	}
	if repo.Name == "" {
		return Repo{}, fmt.Errorf("repository %q has an empty name", raw)
	}
	return repo, nil
}

func splitPathSegments(p string) []string {
	p = strings.TrimSpace(path.Clean("/" + p))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
