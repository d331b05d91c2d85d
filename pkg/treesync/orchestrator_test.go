package treesync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
)

// corruptingRemote reports a blob id that does not match the uploaded bytes.
type corruptingRemote struct {
	Remote
}

func (c corruptingRemote) CreateBlob(ctx context.Context, repo remote.Repo, content []byte) (object.Hash, error) {
	if _, err := c.Remote.CreateBlob(ctx, repo, content); err != nil {
		return "", err
	}
	return object.HashBlob(append([]byte("tampered:"), content...)), nil
}

// truncatingRemote marks every tree listing as truncated.
type truncatingRemote struct {
	Remote
}

func (t truncatingRemote) GetTree(ctx context.Context, repo remote.Repo, sha object.Hash, recursive bool) (remote.TreeListing, error) {
	listing, err := t.Remote.GetTree(ctx, repo, sha, recursive)
	listing.Truncated = true
	return listing, err
}

func TestOrchestratorMissingBranchWithoutCreate(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", nil)
	o := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{})

	_, err := o.Sync(context.Background(), Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}, Branch: "nope"}, files("a", "1"))
	require.ErrorIs(t, err, ErrBranchNotFound)
	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepResolveParent, step)
}

func TestOrchestratorMissingBaseBranch(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", nil)
	o := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{BaseBranch: "trunk"})

	_, err := o.Sync(context.Background(), Target{
		Repo:         remote.Repo{Owner: "octo", Name: "proj"},
		Branch:       "feature",
		CreateBranch: true,
	}, files("a", "1"))
	require.ErrorIs(t, err, ErrBranchNotFound)
	assert.Contains(t, err.Error(), "base branch trunk")
}

func TestOrchestratorRejectsMismatchedBlobID(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", nil)
	o := NewOrchestrator(corruptingRemote{newTestClient(t, hub)}, OrchestratorOptions{})

	_, err := o.Sync(context.Background(), Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}, Branch: "main"}, files("a", "1"))
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepUpload, step)
	assert.Contains(t, err.Error(), "does not match content hash")
	assert.Equal(t, 0, hub.Counters().TreeCreates)
}

func TestOrchestratorRejectsTruncatedTree(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", map[string]string{"a": "1"})
	o := NewOrchestrator(truncatingRemote{newTestClient(t, hub)}, OrchestratorOptions{})

	_, err := o.Plan(context.Background(), Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}, Branch: "main"}, files("a", "1"))
	require.Error(t, err)
	step, _ := FailedStep(err)
	assert.Equal(t, StepDiff, step)
}

func TestOrchestratorRequiresBranch(t *testing.T) {
	hub := newTestHub(t)
	o := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{})
	_, err := o.Sync(context.Background(), Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}}, nil)
	require.Error(t, err)
	assert.Empty(t, hub.Calls())
}

func TestOrchestratorDefaultsCommitMessage(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", nil)
	o := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{})

	out, err := o.Sync(context.Background(), Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}, Branch: "main"}, files("a", "1"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCommitMessage, out.Commit.Message)
	assert.Equal(t, 1, out.Uploaded)
	assert.Empty(t, out.BranchURL)
}

func TestOrchestratorLastWriterWins(t *testing.T) {
	hub := newTestHub(t)
	hub.SeedRepo("octo", "proj", nil)
	target := Target{Repo: remote.Repo{Owner: "octo", Name: "proj"}, Branch: "main"}
	first := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{})
	second := NewOrchestrator(newTestClient(t, hub), OrchestratorOptions{})

	_, err := first.Sync(context.Background(), target, files("a", "first"))
	require.NoError(t, err)
	_, err = second.Sync(context.Background(), target, files("b", "second"))
	require.NoError(t, err)

	got, err := hub.Files("octo", "proj", "main")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "second"}, got)
}

func TestStepErrorMessage(t *testing.T) {
	err := &StepError{Step: StepMoveRef, RepoURL: "https://example.test/o/r", Err: ErrBranchNotFound}
	assert.Equal(t, "sync move-ref failed for https://example.test/o/r: branch does not exist", err.Error())
	assert.ErrorIs(t, err, ErrBranchNotFound)

	_, ok := FailedStep(ErrBranchNotFound)
	assert.False(t, ok)
}
