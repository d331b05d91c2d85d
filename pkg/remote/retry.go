package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"

	"github.com/odvcencio/treesync/pkg/clock"
)

const (
	defaultMaxRetries  = 3
	defaultBaseDelay   = 2 * time.Second
	defaultResetMargin = 5 * time.Second
)

// rateLimitPhrases are matched case-insensitively against error messages.
// Hosting APIs signal secondary limits with a 403 (or even 2xx) and a message
// rather than a 429.
var rateLimitPhrases = []string{
	"rate limit",
	"secondary rate",
	"abuse detection",
	"too many requests",
}

// NoRetries as ExecutorOptions.MaxRetries makes every call a single attempt.
const NoRetries = -1

// ExecutorOptions configures an Executor. Zero-value fields receive defaults
// (3 retries, 2s base delay, 5s reset margin); a negative MaxRetries
// disables retrying.
type ExecutorOptions struct {
	MaxRetries  int
	BaseDelay   time.Duration
	ResetMargin time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Executor retries rate-limited remote calls with header-aware waits and
// exponential backoff. Every other failure is returned immediately.
type Executor struct {
	maxRetries  int
	baseDelay   time.Duration
	resetMargin time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// NewExecutor creates an Executor from opts.
func NewExecutor(opts ExecutorOptions) *Executor {
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.ResetMargin <= 0 {
		opts.ResetMargin = defaultResetMargin
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return &Executor{
		maxRetries:  opts.MaxRetries,
		baseDelay:   opts.BaseDelay,
		resetMargin: opts.ResetMargin,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// MaxRetries returns the number of retries after the first attempt.
func (e *Executor) MaxRetries() int { return e.maxRetries }

// Call runs fn, retrying up to ex.MaxRetries() more times while the failure
// is classified as rate limiting. Non rate-limit failures come back as
// *TransportError without a retry; exhausted retries come back as
// *RateLimitError.
func Call[T any](ctx context.Context, ex *Executor, op string, fn func(context.Context) (T, *github.Response, error)) (T, error) {
	var zero T
	var (
		lastErr  error
		lastWait time.Duration
		attempts int
	)
	for attempt := 0; attempt <= ex.maxRetries; attempt++ {
		attempts++
		v, resp, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		limited, wait := ex.classify(resp, err, attempt)
		if !limited {
			return zero, newTransportError(op, resp, err)
		}
		lastErr, lastWait = err, wait
		if attempt == ex.maxRetries {
			break
		}
		ex.logger.Warn("rate limited, backing off",
			"op", op,
			"attempt", attempt+1,
			"wait", wait)
		if err := ex.clock.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, &RateLimitError{Op: op, Attempts: attempts, Wait: lastWait, Err: lastErr}
}

// Do is Call for operations without a result value.
func Do(ctx context.Context, ex *Executor, op string, fn func(context.Context) (*github.Response, error)) error {
	_, err := Call(ctx, ex, op, func(ctx context.Context) (struct{}, *github.Response, error) {
		resp, err := fn(ctx)
		return struct{}{}, resp, err
	})
	return err
}

// classify reports whether err is a rate-limit signal and how long to wait
// before attempt+1.
func (e *Executor) classify(resp *github.Response, err error, attempt int) (bool, time.Duration) {
	var (
		httpResp *http.Response
		limited  bool
		wait     time.Duration
		hinted   bool
	)
	if resp != nil {
		httpResp = resp.Response
	}

	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	var ghErr *github.ErrorResponse
	switch {
	case errors.As(err, &rle):
		limited = true
		if rle.Response != nil {
			httpResp = rle.Response
		}
		if reset := rle.Rate.Reset.Time; !reset.IsZero() && reset.After(e.clock.Now()) {
			wait, hinted = reset.Sub(e.clock.Now())+e.resetMargin, true
		}
	case errors.As(err, &abuse):
		limited = true
		if abuse.Response != nil {
			httpResp = abuse.Response
		}
		if abuse.RetryAfter != nil {
			wait, hinted = *abuse.RetryAfter+e.resetMargin, true
		}
	case errors.As(err, &ghErr):
		if ghErr.Response != nil {
			httpResp = ghErr.Response
		}
		limited = isRateLimitMessage(ghErr.Message)
	default:
		limited = isRateLimitMessage(err.Error())
	}
	if httpResp != nil && httpResp.StatusCode == http.StatusTooManyRequests {
		limited = true
	}
	if !limited {
		return false, 0
	}
	if !hinted && httpResp != nil {
		wait, hinted = e.headerWait(httpResp.Header)
	}
	if !hinted {
		wait = e.backoff(attempt)
	}
	return true, wait
}

// headerWait derives a wait from Retry-After (delta seconds) or
// X-RateLimit-Reset (epoch seconds). A reset already in the past yields no
// hint so the caller falls back to exponential backoff.
func (e *Executor) headerWait(h http.Header) (time.Duration, bool) {
	if h == nil {
		return 0, false
	}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
			return time.Duration(secs)*time.Second + e.resetMargin, true
		}
	}
	if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			wait := time.Unix(epoch, 0).Sub(e.clock.Now()) + e.resetMargin
			if time.Unix(epoch, 0).After(e.clock.Now()) && wait > 0 {
				return wait, true
			}
		}
	}
	return 0, false
}

// backoff returns baseDelay * 2^attempt.
func (e *Executor) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 20 {
		attempt = 20
	}
	return e.baseDelay << uint(attempt)
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
