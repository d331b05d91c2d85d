// Package fakehub serves an in-memory Git Data REST API for tests. It keeps
// flat trees (one entry per file path) and addresses blobs exactly like the
// real service, so content-addressed reuse can be asserted end to end.
package fakehub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/treesync/pkg/object"
)

// Entry is one flat tree entry.
type Entry struct {
	Path string
	Mode string
	SHA  object.Hash
}

// Commit is a stored commit.
type Commit struct {
	SHA     object.Hash
	Tree    object.Hash
	Parents []object.Hash
	Message string
}

// Repo is the stored state of one repository.
type Repo struct {
	Owner         string
	Name          string
	Description   string
	Private       bool
	DefaultBranch string
	Blobs         map[object.Hash][]byte
	Trees         map[object.Hash][]Entry
	Commits       map[object.Hash]Commit
	Refs          map[string]object.Hash
}

// Counters tallies mutating calls across all repositories.
type Counters struct {
	RepoCreates   int
	BlobCreates   int
	TreeCreates   int
	CommitCreates int
	RefCreates    int
	RefUpdates    int
	BlobReads     int
	PullCreates   int
}

// Failure is an injected response. Body is sent as a JSON message.
type Failure struct {
	Status  int
	Message string
	Header  http.Header
}

// Hub is a fake Git hosting API backed by httptest.Server.
type Hub struct {
	Server *httptest.Server

	// Login is the authenticated account used by POST /user/repos.
	Login string
	// HTMLBase prefixes html_url values.
	HTMLBase string

	mu        sync.Mutex
	token     string
	intercept func(r *http.Request) *Failure
	repos     map[string]*Repo
	counters  Counters
	calls     []string
	seq       int
	pulls     int
}

// New starts a Hub. Callers must Close it.
func New() *Hub {
	h := &Hub{
		Login:    "octo",
		HTMLBase: "https://github.example",
		repos:    make(map[string]*Repo),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}", h.getRepo)
	mux.HandleFunc("POST /user/repos", h.createUserRepo)
	mux.HandleFunc("POST /orgs/{org}/repos", h.createOrgRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/{ref...}", h.getRef)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/refs", h.createRef)
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/git/refs/{ref...}", h.updateRef)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/commits/{sha}", h.getCommit)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/commits", h.createCommit)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/trees/{sha}", h.getTree)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/trees", h.createTree)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/blobs/{sha}", h.getBlob)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/blobs", h.createBlob)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", h.createPull)
	h.Server = httptest.NewServer(h.wrap(mux))
	return h
}

// SetToken requires every request to present token as a bearer token. An
// empty token disables the check.
func (h *Hub) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// SetIntercept installs fn, which may return a Failure to serve instead of
// the normal response. A nil fn removes the interceptor.
func (h *Hub) SetIntercept(fn func(r *http.Request) *Failure) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.intercept = fn
}

// URL returns the API root with a trailing slash.
func (h *Hub) URL() string { return h.Server.URL + "/" }

// Close shuts the server down.
func (h *Hub) Close() { h.Server.Close() }

// Counters returns a snapshot of call counters.
func (h *Hub) Counters() Counters {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counters
}

// ResetCounters zeroes the call counters and call log.
func (h *Hub) ResetCounters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counters = Counters{}
	h.calls = nil
}

// Calls returns "METHOD path" for every request served, in order.
func (h *Hub) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// SeedRepo creates a repository whose default branch holds files. A nil or
// empty map yields a commit of the empty tree.
func (h *Hub) SeedRepo(owner, name string, files map[string]string) *Repo {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.newRepoLocked(owner, name, "", false)
	entries := make([]Entry, 0, len(files))
	for p, content := range files {
		sha := object.HashBlob([]byte(content))
		r.Blobs[sha] = []byte(content)
		entries = append(entries, Entry{Path: p, Mode: object.TreeModeFile, SHA: sha})
	}
	tree := h.storeTreeLocked(r, entries)
	commit := h.storeCommitLocked(r, tree, nil, "Initial commit")
	r.Refs["refs/heads/"+r.DefaultBranch] = commit
	return r
}

// Files returns the path->content view of branch in owner/name.
func (h *Hub) Files(owner, name, branch string) (map[string]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.repos[owner+"/"+name]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s not found", owner, name)
	}
	head, ok := r.Refs["refs/heads/"+branch]
	if !ok {
		return nil, fmt.Errorf("branch %s not found", branch)
	}
	commit := r.Commits[head]
	out := make(map[string]string)
	for _, e := range r.Trees[commit.Tree] {
		out[e.Path] = string(r.Blobs[e.SHA])
	}
	return out, nil
}

// Head returns the commit branch points at.
func (h *Hub) Head(owner, name, branch string) (Commit, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.repos[owner+"/"+name]
	if !ok {
		return Commit{}, false
	}
	sha, ok := r.Refs["refs/heads/"+branch]
	if !ok {
		return Commit{}, false
	}
	c, ok := r.Commits[sha]
	return c, ok
}

// Repo returns the stored repository, if any.
func (h *Hub) Repo(owner, name string) (*Repo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.repos[owner+"/"+name]
	return r, ok
}

func (h *Hub) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.calls = append(h.calls, r.Method+" "+r.URL.Path)
		intercept := h.intercept
		token := h.token
		h.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeMessage(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		if intercept != nil {
			if f := intercept(r); f != nil {
				for k, vs := range f.Header {
					for _, v := range vs {
						w.Header().Add(k, v)
					}
				}
				writeMessage(w, f.Status, f.Message)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Hub) newRepoLocked(owner, name, description string, private bool) *Repo {
	r := &Repo{
		Owner:         owner,
		Name:          name,
		Description:   description,
		Private:       private,
		DefaultBranch: "main",
		Blobs:         make(map[object.Hash][]byte),
		Trees:         make(map[object.Hash][]Entry),
		Commits:       make(map[object.Hash]Commit),
		Refs:          make(map[string]object.Hash),
	}
	h.repos[owner+"/"+name] = r
	return r
}

func (h *Hub) storeTreeLocked(r *Repo, entries []Entry) object.Hash {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	var b strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&b, "%s %s\x00%s\n", e.Mode, e.Path, e.SHA)
	}
	sha := object.HashObject(object.TypeTree, []byte(b.String()))
	r.Trees[sha] = sorted
	return sha
}

func (h *Hub) storeCommitLocked(r *Repo, tree object.Hash, parents []object.Hash, message string) object.Hash {
	h.seq++
	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "seq %d\n\n%s", h.seq, message)
	sha := object.HashObject(object.TypeCommit, []byte(b.String()))
	r.Commits[sha] = Commit{SHA: sha, Tree: tree, Parents: parents, Message: message}
	return sha
}

func (h *Hub) lookup(w http.ResponseWriter, r *http.Request) (*Repo, bool) {
	repo, ok := h.repos[r.PathValue("owner")+"/"+r.PathValue("repo")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return nil, false
	}
	return repo, true
}

func (h *Hub) repoJSON(r *Repo) map[string]any {
	return map[string]any{
		"name":           r.Name,
		"full_name":      r.Owner + "/" + r.Name,
		"html_url":       h.HTMLBase + "/" + r.Owner + "/" + r.Name,
		"default_branch": r.DefaultBranch,
		"private":        r.Private,
		"description":    r.Description,
		"owner":          map[string]any{"login": r.Owner},
	}
}

func (h *Hub) getRepo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.repoJSON(repo))
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

func (h *Hub) createUserRepo(w http.ResponseWriter, r *http.Request) {
	h.createRepo(w, r, h.Login)
}

func (h *Hub) createOrgRepo(w http.ResponseWriter, r *http.Request) {
	h.createRepo(w, r, r.PathValue("org"))
}

func (h *Hub) createRepo(w http.ResponseWriter, r *http.Request, owner string) {
	var req createRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "Repository creation failed.")
		return
	}
	if _, exists := h.repos[owner+"/"+req.Name]; exists {
		writeMessage(w, http.StatusUnprocessableEntity, "Repository creation failed: name already exists on this account")
		return
	}
	h.counters.RepoCreates++
	repo := h.newRepoLocked(owner, req.Name, req.Description, req.Private)
	if req.AutoInit {
		readme := []byte("# " + req.Name + "\n")
		sha := object.HashBlob(readme)
		repo.Blobs[sha] = readme
		tree := h.storeTreeLocked(repo, []Entry{{Path: "README.md", Mode: object.TreeModeFile, SHA: sha}})
		commit := h.storeCommitLocked(repo, tree, nil, "Initial commit")
		repo.Refs["refs/heads/"+repo.DefaultBranch] = commit
	}
	writeJSON(w, http.StatusCreated, h.repoJSON(repo))
}

func refJSON(name string, sha object.Hash) map[string]any {
	return map[string]any{
		"ref":    name,
		"object": map[string]any{"type": "commit", "sha": string(sha)},
	}
}

func (h *Hub) getRef(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	name := "refs/" + strings.TrimPrefix(r.PathValue("ref"), "refs/")
	sha, ok := repo.Refs[name]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, refJSON(name, sha))
}

func (h *Hub) createRef(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !strings.HasPrefix(req.Ref, "refs/") {
		writeMessage(w, http.StatusUnprocessableEntity, "Reference name must start with refs/")
		return
	}
	if _, exists := repo.Refs[req.Ref]; exists {
		writeMessage(w, http.StatusUnprocessableEntity, "Reference already exists")
		return
	}
	if _, ok := repo.Commits[object.Hash(req.SHA)]; !ok {
		writeMessage(w, http.StatusUnprocessableEntity, "Object does not exist")
		return
	}
	h.counters.RefCreates++
	repo.Refs[req.Ref] = object.Hash(req.SHA)
	writeJSON(w, http.StatusCreated, refJSON(req.Ref, object.Hash(req.SHA)))
}

func (h *Hub) updateRef(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	name := "refs/" + strings.TrimPrefix(r.PathValue("ref"), "refs/")
	current, exists := repo.Refs[name]
	if !exists {
		writeMessage(w, http.StatusUnprocessableEntity, "Reference does not exist")
		return
	}
	next := object.Hash(req.SHA)
	if _, ok := repo.Commits[next]; !ok {
		writeMessage(w, http.StatusUnprocessableEntity, "Object does not exist")
		return
	}
	if !req.Force && !isAncestor(repo, current, next) {
		writeMessage(w, http.StatusUnprocessableEntity, "Update is not a fast forward")
		return
	}
	h.counters.RefUpdates++
	repo.Refs[name] = next
	writeJSON(w, http.StatusOK, refJSON(name, next))
}

func isAncestor(repo *Repo, ancestor, descendant object.Hash) bool {
	stack := []object.Hash{descendant}
	seen := make(map[object.Hash]bool)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == ancestor {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		stack = append(stack, repo.Commits[h].Parents...)
	}
	return false
}

func commitJSON(c Commit) map[string]any {
	parents := make([]map[string]any, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, map[string]any{"sha": string(p)})
	}
	return map[string]any{
		"sha":     string(c.SHA),
		"tree":    map[string]any{"sha": string(c.Tree)},
		"parents": parents,
		"message": c.Message,
	}
}

func (h *Hub) getCommit(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	c, ok := repo.Commits[object.Hash(r.PathValue("sha"))]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, commitJSON(c))
}

func (h *Hub) createCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if _, ok := repo.Trees[object.Hash(req.Tree)]; !ok {
		writeMessage(w, http.StatusUnprocessableEntity, "Tree SHA does not exist")
		return
	}
	parents := make([]object.Hash, 0, len(req.Parents))
	for _, p := range req.Parents {
		if _, ok := repo.Commits[object.Hash(p)]; !ok {
			writeMessage(w, http.StatusUnprocessableEntity, "Parent SHA does not exist or is not a commit object")
			return
		}
		parents = append(parents, object.Hash(p))
	}
	h.counters.CommitCreates++
	sha := h.storeCommitLocked(repo, object.Hash(req.Tree), parents, req.Message)
	writeJSON(w, http.StatusCreated, commitJSON(repo.Commits[sha]))
}

func (h *Hub) getTree(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sha := object.Hash(r.PathValue("sha"))
	entries, ok := repo.Trees[sha]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	recursive := r.URL.Query().Get("recursive") != ""
	out := make([]map[string]any, 0, len(entries))
	dirs := make(map[string]bool)
	for _, e := range entries {
		if recursive {
			parts := strings.Split(e.Path, "/")
			for i := 1; i < len(parts); i++ {
				dir := strings.Join(parts[:i], "/")
				if !dirs[dir] {
					dirs[dir] = true
					out = append(out, map[string]any{
						"path": dir,
						"mode": object.TreeModeDir,
						"type": "tree",
						"sha":  string(object.HashObject(object.TypeTree, []byte(dir))),
					})
				}
			}
		}
		out = append(out, map[string]any{
			"path": e.Path,
			"mode": e.Mode,
			"type": "blob",
			"sha":  string(e.SHA),
			"size": len(repo.Blobs[e.SHA]),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": string(sha), "tree": out, "truncated": false})
}

func (h *Hub) createTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path string  `json:"path"`
			Mode string  `json:"mode"`
			Type string  `json:"type"`
			SHA  *string `json:"sha"`
		} `json:"tree"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	byPath := make(map[string]Entry)
	if req.BaseTree != "" {
		for _, e := range repo.Trees[object.Hash(req.BaseTree)] {
			byPath[e.Path] = e
		}
	}
	for _, e := range req.Tree {
		if e.SHA == nil {
			delete(byPath, e.Path)
			continue
		}
		if e.Type != "blob" {
			writeMessage(w, http.StatusUnprocessableEntity, "Only blob entries are supported")
			return
		}
		if _, ok := repo.Blobs[object.Hash(*e.SHA)]; !ok {
			writeMessage(w, http.StatusUnprocessableEntity, "BadObjectState")
			return
		}
		byPath[e.Path] = Entry{Path: e.Path, Mode: e.Mode, SHA: object.Hash(*e.SHA)}
	}
	entries := make([]Entry, 0, len(byPath))
	for _, e := range byPath {
		entries = append(entries, e)
	}
	h.counters.TreeCreates++
	sha := h.storeTreeLocked(repo, entries)
	writeJSON(w, http.StatusCreated, map[string]any{"sha": string(sha), "truncated": false})
}

func (h *Hub) getBlob(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sha := object.Hash(r.PathValue("sha"))
	data, ok := repo.Blobs[sha]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	h.counters.BlobReads++
	writeJSON(w, http.StatusOK, map[string]any{
		"sha":      string(sha),
		"size":     len(data),
		"encoding": "base64",
		"content":  wrapBase64(base64.StdEncoding.EncodeToString(data)),
	})
}

// wrapBase64 breaks encoded content into 60-column lines like the real API.
func wrapBase64(s string) string {
	var b strings.Builder
	for len(s) > 60 {
		b.WriteString(s[:60])
		b.WriteByte('\n')
		s = s[60:]
	}
	b.WriteString(s)
	b.WriteByte('\n')
	return b.String()
}

func (h *Hub) createBlob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	data := []byte(req.Content)
	if req.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeMessage(w, http.StatusUnprocessableEntity, "Invalid base64 content")
			return
		}
		data = decoded
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.counters.BlobCreates++
	sha := object.HashBlob(data)
	repo.Blobs[sha] = data
	writeJSON(w, http.StatusCreated, map[string]any{"sha": string(sha)})
}

func (h *Hub) createPull(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Base  string `json:"base"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	repo, ok := h.lookup(w, r)
	if !ok {
		return
	}
	for _, branch := range []string{req.Head, req.Base} {
		if _, ok := repo.Refs["refs/heads/"+branch]; !ok {
			writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed: branch "+branch+" does not exist")
			return
		}
	}
	h.counters.PullCreates++
	h.pulls++
	writeJSON(w, http.StatusCreated, map[string]any{
		"number":   h.pulls,
		"state":    "open",
		"title":    req.Title,
		"html_url": fmt.Sprintf("%s/%s/%s/pull/%d", h.HTMLBase, repo.Owner, repo.Name, h.pulls),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}
