package treesync

import (
	"context"
	"testing"
	"time"

	"github.com/odvcencio/treesync/pkg/clock"
	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
	"github.com/odvcencio/treesync/pkg/remote/fakehub"
)

var testCreds = remote.Credentials{Token: "test-token", Owner: "octo"}

func newTestHub(t *testing.T) *fakehub.Hub {
	t.Helper()
	hub := fakehub.New()
	t.Cleanup(hub.Close)
	return hub
}

func newTestEngine(t *testing.T, hub *fakehub.Hub) (*Engine, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := New(Options{
		Client: remote.ClientOptions{BaseURL: hub.URL()},
		Clock:  fc,
	})
	return e, fc
}

func newTestClient(t *testing.T, hub *fakehub.Hub) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(context.Background(), testCreds, remote.ClientOptions{
		BaseURL:  hub.URL(),
		Executor: remote.ExecutorOptions{Clock: clock.NewFake(time.Unix(0, 0))},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func files(kv ...string) []object.FileEntry {
	out := make([]object.FileEntry, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, object.FileEntry{Path: kv[i], Content: []byte(kv[i+1])})
	}
	return out
}
