package batch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treesync/pkg/clock"
)

func TestRunPreservesInputOrder(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	opts := Options{Size: 5, Clock: clock.NewFake(time.Unix(0, 0))}

	got, err := Run(context.Background(), items, opts, func(ctx context.Context, item, _ int) (int, error) {
		// Finish out of order inside each batch.
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		return item * 10, nil
	})
	require.NoError(t, err)

	want := make([]int, len(items))
	for i := range want {
		want[i] = i * 10
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPassesIndexWithinBatch(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	var mu sync.Mutex
	seen := make(map[string]int)

	_, err := Run(context.Background(), items, Options{Size: 2, Clock: clock.NewFake(time.Unix(0, 0))},
		func(ctx context.Context, item string, index int) (struct{}, error) {
			mu.Lock()
			seen[item] = index
			mu.Unlock()
			return struct{}{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 0, "d": 1, "e": 0}, seen)
}

func TestRunPacing(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	opts := Options{Size: 3, IntraDelay: 100 * time.Millisecond, InterDelay: time.Second, Clock: fc}

	_, err := Run(context.Background(), []int{1, 2, 3, 4, 5}, opts, func(ctx context.Context, item, _ int) (int, error) {
		return item, nil
	})
	require.NoError(t, err)

	sleeps := fc.Sleeps()
	// Two staggered starts in the first batch, one pause, one stagger in
	// the second batch. Order inside a batch is not deterministic.
	require.Len(t, sleeps, 4)
	count := make(map[time.Duration]int)
	for _, d := range sleeps {
		count[d]++
	}
	assert.Equal(t, map[time.Duration]int{
		100 * time.Millisecond: 2,
		200 * time.Millisecond: 1,
		time.Second:            1,
	}, count)
}

func TestRunBatchesAreSequential(t *testing.T) {
	var inFlight, peak atomic.Int32
	_, err := Run(context.Background(), make([]int, 12), Options{Size: 4, Clock: clock.NewFake(time.Unix(0, 0))},
		func(ctx context.Context, _, _ int) (int, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return 0, nil
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestRunStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32

	_, err := Run(context.Background(), []int{0, 1, 2, 3, 4, 5}, Options{Size: 2, Clock: clock.NewFake(time.Unix(0, 0))},
		func(ctx context.Context, item, _ int) (int, error) {
			calls.Add(1)
			if item == 1 {
				return 0, boom
			}
			return item, nil
		})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "item 1")
	assert.Equal(t, int32(2), calls.Load(), "later batches must not start")
}

func TestRunEmpty(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	got, err := Run(context.Background(), nil, UploadPacing.WithClock(fc), func(ctx context.Context, item, _ int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, fc.Sleeps())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []int{1, 2, 3}, Options{Size: 1, InterDelay: time.Second, Clock: clock.NewFake(time.Unix(0, 0))},
		func(ctx context.Context, item, _ int) (int, error) {
			return item, nil
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 5, UploadPacing.Size)
	assert.Equal(t, 200*time.Millisecond, UploadPacing.IntraDelay)
	assert.Equal(t, 500*time.Millisecond, UploadPacing.InterDelay)
	assert.Equal(t, 20, DownloadPacing.Size)
	assert.Greater(t, DownloadPacing.Size, UploadPacing.Size)
}
