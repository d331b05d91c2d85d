package treesync

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRepositoryCreatesOnce(t *testing.T) {
	hub := newTestHub(t)
	b := NewBootstrapper(newTestClient(t, hub), nil)
	ctx := context.Background()

	first, err := b.EnsureRepository(ctx, RepoRequest{Name: "fresh", Private: true})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "https://github.example/octo/fresh", first.URL)

	repo, ok := hub.Repo("octo", "fresh")
	require.True(t, ok)
	assert.True(t, repo.Private)
	// Auto-initialized so the first sync has a parent commit.
	_, ok = hub.Head("octo", "fresh", "main")
	assert.True(t, ok)

	second, err := b.EnsureRepository(ctx, RepoRequest{Name: "fresh"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, 1, hub.Counters().RepoCreates)
}

func TestEnsureRepositoryRequiresName(t *testing.T) {
	hub := newTestHub(t)
	_, err := NewBootstrapper(newTestClient(t, hub), nil).EnsureRepository(context.Background(), RepoRequest{Name: "  "})
	require.Error(t, err)
	assert.Empty(t, hub.Calls())
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "A project", want: "A project"},
		{name: "trim", in: "  padded  ", want: "padded"},
		{name: "collapse whitespace", in: "a \t\n b", want: "a b"},
		{name: "control chars", in: "bell\x07 and\x00 nul\x1b", want: "bell and nul"},
		{name: "unicode kept", in: "café ✓", want: "café ✓"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDescription(tt.in))
		})
	}
}

func TestSanitizeDescriptionCapsLength(t *testing.T) {
	got := SanitizeDescription(strings.Repeat("é", MaxDescriptionLength+50))
	assert.Equal(t, MaxDescriptionLength, utf8.RuneCountInString(got))
}
