// Package workspace converts between a local directory and a file set.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/denormal/go-gitignore"

	"github.com/odvcencio/treesync/pkg/object"
)

// IgnoreFile holds treesync-specific ignore patterns. It is read in addition
// to .gitignore at the workspace root.
const IgnoreFile = ".treesyncignore"

var defaultIgnorePatterns = []string{
	".git/**",
}

// Load walks root and returns every regular file not excluded by ignore
// rules, sorted by path. Paths are slash-separated and relative to root.
// Symlinks and other special files are skipped.
func Load(root string) ([]object.FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}
	matcher, err := loadIgnoreMatcher(root)
	if err != nil {
		return nil, err
	}

	var out []object.FileEntry
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" || ignored(matcher, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignored(matcher, rel, false) {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		out = append(out, object.FileEntry{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func ignored(m gitignore.GitIgnore, rel string, isDir bool) bool {
	match := m.Relative(rel, isDir)
	return match != nil && match.Ignore()
}

// loadIgnoreMatcher compiles the default patterns plus the root .gitignore
// and .treesyncignore files.
func loadIgnoreMatcher(root string) (gitignore.GitIgnore, error) {
	raw := append([]string(nil), defaultIgnorePatterns...)
	for _, name := range []string{".gitignore", IgnoreFile} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		raw = append(raw, strings.Split(string(data), "\n")...)
	}

	var patterns []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		// Directory patterns match their contents.
		if strings.HasSuffix(p, "/") && !strings.HasSuffix(p, "**/") {
			p += "**"
		}
		patterns = append(patterns, p)
	}

	m := gitignore.New(strings.NewReader(strings.Join(patterns, "\n")), root, func(gitignore.Error) bool { return true })
	if m == nil {
		return nil, fmt.Errorf("compile ignore patterns for %s", root)
	}
	return m, nil
}

// CleanPath validates a file set path and returns it in canonical form.
// Absolute paths and paths that leave the root are rejected.
func CleanPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q is absolute", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the workspace root", p)
	}
	return clean, nil
}

// Write materializes files under root, creating directories as needed.
// Existing files at the same paths are overwritten; other files are left
// alone.
func Write(root string, files []object.FileEntry) error {
	for _, f := range files {
		rel, err := CleanPath(f.Path)
		if err != nil {
			return err
		}
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}
