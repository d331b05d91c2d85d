package treesync

import (
	"errors"
	"fmt"
)

var (
	// ErrBranchNotFound is returned when a branch required to exist is absent.
	ErrBranchNotFound = errors.New("branch does not exist")

	// ErrRepositoryNotFound is returned when a repository required to exist
	// is absent.
	ErrRepositoryNotFound = errors.New("repository not found")
)

// Step names one stage of a sync.
type Step string

const (
	StepResolveParent Step = "resolve-parent"
	StepDiff          Step = "diff"
	StepUpload        Step = "upload"
	StepBuildTree     Step = "build-tree"
	StepCreateCommit  Step = "create-commit"
	StepMoveRef       Step = "move-ref"
	StepDone          Step = "done"
)

// StepError reports which stage of a sync failed. Objects created by earlier
// stages are left on the remote; retrying the sync is safe because they are
// content-addressed.
type StepError struct {
	Step    Step
	RepoURL string
	Err     error
}

func (e *StepError) Error() string {
	if e.RepoURL != "" {
		return fmt.Sprintf("sync %s failed for %s: %v", e.Step, e.RepoURL, e.Err)
	}
	return fmt.Sprintf("sync %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PartialFailureError is returned when a sync failed after it had already
// written to the remote: a repository was created, or blobs or a tree were
// stored, but a later step did not complete. Nothing is rolled back.
// RepoURL points at the repository so the caller can retry or clean up.
type PartialFailureError struct {
	RepoURL string
	// RepositoryCreated is set when the failed sync was the initial sync of
	// a repository created by the same call.
	RepositoryCreated bool
	Err               error
}

func (e *PartialFailureError) Error() string {
	if e.RepositoryCreated {
		return fmt.Sprintf("repository %s was created but its initial sync failed: %v", e.RepoURL, e.Err)
	}
	return fmt.Sprintf("sync of %s left objects on the remote: %v", e.RepoURL, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// FailedStep returns the stage recorded in err, if any.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
