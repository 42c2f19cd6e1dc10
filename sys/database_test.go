package sys

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(CloseDatabase)
}

func TestAutoPlaylistDB(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	store := NewAutoPlaylistDB(DB)

	require.NoError(t, store.Add(ctx, "https://youtu.be/a"))
	require.NoError(t, store.Add(ctx, "https://youtu.be/b"))
	require.NoError(t, store.Add(ctx, "https://youtu.be/a"))

	urls, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://youtu.be/a", "https://youtu.be/b"}, urls)

	require.NoError(t, store.Remove(ctx, "https://youtu.be/a"))
	urls, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/b"}, urls)
}

func TestAutoPlaylistSeedOnce(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	store := NewAutoPlaylistDB(DB)

	path := filepath.Join(t.TempDir(), "autoplaylist.txt")
	body := "# favourites\nhttps://youtu.be/a\n\nhttps://youtu.be/b\nhttps://youtu.be/a\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	n, err := store.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Songs removed at runtime are not brought back by a restart.
	require.NoError(t, store.Remove(ctx, "https://youtu.be/a"))
	n, err = store.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, n)

	urls, _ := store.List(ctx)
	assert.Equal(t, []string{"https://youtu.be/b"}, urls)
}

func TestAutoPlaylistSeedMissingFile(t *testing.T) {
	openTestDB(t)
	n, err := NewAutoPlaylistDB(DB).SeedFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBlacklist(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	n, err := AddToBlacklist(ctx, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	blocked, err := IsBlacklisted(ctx, 2)
	require.NoError(t, err)
	assert.True(t, blocked)

	n, err = RemoveFromBlacklist(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	blocked, err = IsBlacklisted(ctx, 2)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGuildVolume(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	_, ok, err := GetGuildVolume(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetGuildVolume(ctx, 10, 0.4))
	require.NoError(t, SetGuildVolume(ctx, 10, 0.25))

	v, ok, err := GetGuildVolume(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-9)
}
