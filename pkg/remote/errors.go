package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"
)

var (
	// ErrMissingCredentials is returned before any network call when the
	// token or account identifier is absent.
	ErrMissingCredentials = errors.New("missing credentials: token and owner are required")

	// ErrNotFound matches any remote 404. Use errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrRateLimitExceeded matches a RateLimitError. Use errors.Is.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// TransportError is any non rate-limit failure of a remote call. Status is
// zero when no HTTP response was received.
type TransportError struct {
	Op      string
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": %d", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports 404 responses as ErrNotFound.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// RateLimitError is returned once every retry of a rate-limited call has been
// used. Wait is the last computed wait hint.
type RateLimitError struct {
	Op       string
	Attempts int
	Wait     time.Duration
	Err      error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limit exceeded after %d attempts (last wait hint %s)", e.Op, e.Attempts, e.Wait)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// newTransportError converts a failed go-github call into a TransportError.
func newTransportError(op string, resp *github.Response, err error) error {
	te := &TransportError{Op: op, Err: err}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		te.Message = strings.TrimSpace(ghErr.Message)
		if ghErr.Response != nil {
			te.Status = ghErr.Response.StatusCode
			if ghErr.Response.Request != nil {
				te.Method = ghErr.Response.Request.Method
				te.Path = ghErr.Response.Request.URL.Path
			}
		}
		return te
	}
	if resp != nil && resp.Response != nil {
		te.Status = resp.StatusCode
		if resp.Request != nil {
			te.Method = resp.Request.Method
			te.Path = resp.Request.URL.Path
		}
	}
	return te
}
