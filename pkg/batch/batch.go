// Package batch runs independent remote operations in fixed-size,
// paced batches.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/treesync/pkg/clock"
)

// Options controls batch size and pacing.
type Options struct {
	// Size is the number of items issued concurrently per batch.
	Size int
	// IntraDelay staggers starts inside a batch: member i waits
	// IntraDelay*i before issuing.
	IntraDelay time.Duration
	// InterDelay is the pause between consecutive batches.
	InterDelay time.Duration
	// Clock defaults to clock.Real.
	Clock clock.Clock
}

// UploadPacing is used for blob writes. Writes cost more of the remote
// budget than reads.
var UploadPacing = Options{Size: 5, IntraDelay: 200 * time.Millisecond, InterDelay: 500 * time.Millisecond}

// DownloadPacing is used for blob reads.
var DownloadPacing = Options{Size: 20, IntraDelay: 100 * time.Millisecond, InterDelay: 200 * time.Millisecond}

// WithClock returns a copy of o using c.
func (o Options) WithClock(c clock.Clock) Options {
	o.Clock = c
	return o
}

// Run calls fn for every item and returns the results in input order.
// Members of one batch run concurrently; the next batch starts only after
// the previous one has fully completed. The index passed to fn is the
// item's position within its batch. The first error cancels the rest of
// its batch and is returned; later batches are not started.
func Run[T, R any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	size := opts.Size
	if size <= 0 {
		size = 1
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	results := make([]R, len(items))
	for start := 0; start < len(items); start += size {
		if start > 0 && opts.InterDelay > 0 {
			if err := clk.Sleep(ctx, opts.InterDelay); err != nil {
				return nil, err
			}
		}
		end := min(start+size, len(items))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			member := i - start
			g.Go(func() error {
				if member > 0 && opts.IntraDelay > 0 {
					if err := clk.Sleep(gctx, opts.IntraDelay*time.Duration(member)); err != nil {
						return err
					}
				}
				r, err := fn(gctx, items[i], member)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
