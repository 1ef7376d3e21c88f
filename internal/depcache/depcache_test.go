package depcache

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hdlplay/internal/tool"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// countingPrepare adds a lock file derived from the manifest and counts
// its invocations.
type countingPrepare struct {
	calls int
	fail  bool
}

func (p *countingPrepare) Run(_ context.Context, _ []string, in tree.Tree, io tool.IO) (tree.Tree, error) {
	p.calls++
	_, _ = fmt.Fprintln(io.Stdout, "resolving")
	if p.fail {
		return nil, fmt.Errorf("manifest invalid")
	}
	manifest, err := tree.GetString(in, ManifestPath)
	if err != nil {
		return nil, err
	}
	return tree.Set(in, []string{"build", "deps.lock"}, []byte("locked "+manifest))
}

func seed(manifest, source string) tree.Tree {
	return tree.Tree{
		"swim.toml": tree.File(manifest),
		"src":       tree.Tree{"playground.spade": tree.File(source)},
	}
}

func TestUnchangedManifestRunsOnce(t *testing.T) {
	prep := &countingPrepare{}
	cache := New()
	wrapped := cache.Wrap(prep)

	first, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)

	var stdout bytes.Buffer
	second, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.IO{Stdout: &stdout, Stderr: &stdout})
	require.NoError(t, err)

	assert.Equal(t, 1, prep.calls)
	assert.Equal(t, HitMessage, stdout.String())
	assert.True(t, tree.Equal(first, second))
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, cache.Stats())
}

func TestChangedManifestByteInvalidates(t *testing.T) {
	prep := &countingPrepare{}
	wrapped := New().Wrap(prep)

	_, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	out, err := wrapped.Run(context.Background(), nil, seed(`name = "q"`, "a"), tool.Discard)
	require.NoError(t, err)

	assert.Equal(t, 2, prep.calls)
	lock, err := tree.GetString(out, []string{"build", "deps.lock"})
	require.NoError(t, err)
	assert.Equal(t, `locked name = "q"`, lock)
}

func TestCacheHitOverlaysCurrentInput(t *testing.T) {
	prep := &countingPrepare{}
	wrapped := New().Wrap(prep)

	_, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "old"), tool.Discard)
	require.NoError(t, err)
	out, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "new"), tool.Discard)
	require.NoError(t, err)

	assert.Equal(t, 1, prep.calls)
	src, err := tree.GetString(out, []string{"src", "playground.spade"})
	require.NoError(t, err)
	assert.Equal(t, "new", src)
	_, err = tree.Get(out, []string{"build", "deps.lock"})
	assert.NoError(t, err)
}

func TestFailureIsNotCached(t *testing.T) {
	prep := &countingPrepare{fail: true}
	cache := New()
	wrapped := cache.Wrap(prep)

	_, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.Error(t, err)
	_, ok := cache.Manifest()
	assert.False(t, ok)

	prep.fail = false
	_, err = wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, prep.calls, "a retry with the same manifest must run the tool again")

	manifest, ok := cache.Manifest()
	require.True(t, ok)
	assert.Equal(t, `name = "p"`, manifest)
}

func TestMissingManifestBypasses(t *testing.T) {
	calls := 0
	cache := New()
	wrapped := cache.Wrap(tool.Func(func(_ context.Context, _ []string, in tree.Tree, _ tool.IO) (tree.Tree, error) {
		calls++
		return in, nil
	}))

	for i := 0; i < 2; i++ {
		_, err := wrapped.Run(context.Background(), nil, tree.Tree{}, tool.Discard)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.Stats().Bypassed)
}

func TestCachedTreeIsIsolated(t *testing.T) {
	prep := &countingPrepare{}
	wrapped := New().Wrap(prep)

	first, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	first["build"].(tree.Tree)["deps.lock"] = tree.File("tampered")

	second, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	lock, err := tree.GetString(second, []string{"build", "deps.lock"})
	require.NoError(t, err)
	assert.Equal(t, `locked name = "p"`, lock)
}

func TestReset(t *testing.T) {
	prep := &countingPrepare{}
	cache := New()
	wrapped := cache.Wrap(prep)

	_, err := wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	cache.Reset()
	assert.Equal(t, Stats{}, cache.Stats())

	_, err = wrapped.Run(context.Background(), nil, seed(`name = "p"`, "a"), tool.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, prep.calls)
}
