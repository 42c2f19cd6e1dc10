package proc

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAutoSession(t *testing.T, r *fakeResolver) *Session {
	t.Helper()
	reg := NewRegistry(RegistryConfig{Resolver: r})
	s, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return &fakeTransport{}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { reg.Shutdown(context.Background()) })
	return s
}

func TestAutoPlaylistRefill(t *testing.T) {
	r := newFakeResolver().song("x", time.Minute).song("y", time.Minute)
	store := &memStore{urls: []string{"x", "y"}}
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(store, r, true)
	ap.pick = func(n int) int { return n - 1 }

	e, err := ap.Refill(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "y", e.Reference)
	assert.Zero(t, e.Requester)

	// Something is queued now, so nothing more is added.
	e, err = ap.Refill(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 1, s.Playlist.Len())
}

func TestAutoPlaylistRemovesUnplayable(t *testing.T) {
	r := newFakeResolver().failing("dead").song("ok", time.Minute)
	store := &memStore{urls: []string{"dead", "ok"}}
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(store, r, true)
	ap.pick = func(int) int { return 0 }

	e, err := ap.Refill(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "ok", e.Reference)

	urls, _ := store.List(context.Background())
	assert.Equal(t, []string{"ok"}, urls)
	assert.True(t, ap.Enabled())
}

func TestAutoPlaylistDisablesWhenEmpty(t *testing.T) {
	r := newFakeResolver().failing("dead")
	store := &memStore{urls: []string{"dead"}}
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(store, r, true)

	e, err := ap.Refill(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.False(t, ap.Enabled())
}

func TestAutoPlaylistSkipsPlaylists(t *testing.T) {
	r := newFakeResolver().playlist("list", "youtube:playlist", "a")
	store := &memStore{urls: []string{"list"}}
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(store, r, true)

	e, err := ap.Refill(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, e)
	urls, _ := store.List(context.Background())
	assert.Equal(t, []string{"list"}, urls)
	assert.True(t, ap.Enabled())
}

func TestAutoPlaylistFeedsPlayer(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute).song("auto", time.Minute)
	store := &memStore{urls: []string{"auto"}}
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(store, r, true)
	s.Player.Subscribe(EventFinishedPlaying, ap.OnFinished(context.Background(), s))
	rec := record(s.Player, EventPlay)

	s.Playlist.Enqueue("a", 5, 0)
	require.NoError(t, s.Player.Play(context.Background()))
	require.NoError(t, s.Player.Skip())

	require.Eventually(t, func() bool { return len(rec.played()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"a", "auto"}, rec.played())
}

func TestAutoPlaylistDisabled(t *testing.T) {
	r := newFakeResolver().song("x", time.Minute)
	s := newAutoSession(t, r)
	ap := NewAutoPlaylist(&memStore{urls: []string{"x"}}, r, false)

	e, err := ap.Refill(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 0, s.Playlist.Len())
}
