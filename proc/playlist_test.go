package proc

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistEnqueueIsFIFO(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute).song("b", time.Minute).song("c", time.Minute)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	for i, ref := range []string{"a", "b", "c"} {
		_, pos := p.Enqueue(ref, 1, 2)
		assert.Equal(t, i+1, pos)
	}

	var got []string
	for e := p.PopHead(); e != nil; e = p.PopHead() {
		got = append(got, e.Reference)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Nil(t, p.PopHead())
}

func TestPlaylistEntryResolves(t *testing.T) {
	r := newFakeResolver().song("a", 90*time.Second)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	e, _ := p.Enqueue("a", 7, 8)
	require.NoError(t, e.Wait(context.Background()))

	assert.Equal(t, EntryResolved, e.Status())
	d, ok := e.Duration()
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)
	assert.Equal(t, "title a", e.Title())
	assert.Equal(t, snowflake.ID(7), e.Requester)
}

func TestPlaylistFailedEntryIsRemoved(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute).failing("bad").song("c", time.Minute)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	p.Enqueue("a", 1, 0)
	bad, _ := p.Enqueue("bad", 1, 0)
	p.Enqueue("c", 1, 0)

	err := bad.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, ExtractionFailed))
	assert.Equal(t, EntryFailed, bad.Status())

	require.Eventually(t, func() bool { return p.Len() == 2 }, waitFor, tick)
	for e := range p.Entries() {
		assert.NotEqual(t, "bad", e.Reference)
	}
}

func TestPlaylistExpansionIsUnsupportedAsEntry(t *testing.T) {
	r := newFakeResolver().playlist("list", "youtube:playlist", "a", "b")
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	e, _ := p.Enqueue("list", 1, 0)
	err := e.Wait(context.Background())
	assert.True(t, IsKind(err, UnsupportedReference))
}

func TestPlaylistResolveTimeout(t *testing.T) {
	r := newFakeResolver()
	r.gated("slow", time.Minute)
	opts := DefaultPlaylistOptions()
	opts.ResolveTimeout = 20 * time.Millisecond
	p := NewPlaylist(r, opts)
	defer p.Close()

	e, _ := p.Enqueue("slow", 1, 0)
	err := e.Wait(context.Background())
	assert.True(t, IsKind(err, ExtractionFailed))
	require.Eventually(t, func() bool { return p.Len() == 0 }, waitFor, tick)
}

func TestPlaylistEnqueueBulkResolvesInOrder(t *testing.T) {
	r := newFakeResolver()
	refs := []string{"a", "b", "c", "d"}
	for _, ref := range refs {
		r.song(ref, time.Minute)
	}
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	entries := p.EnqueueBulk(refs, 1, 0)
	require.Len(t, entries, 4)
	for _, e := range entries {
		require.NoError(t, e.Wait(context.Background()))
	}
	assert.Equal(t, refs, r.Calls())
	assert.Equal(t, 4, p.Len())
}

func TestPlaylistClearAbandonsQueuedResolutions(t *testing.T) {
	r := newFakeResolver().song("b", time.Minute).song("c", time.Minute)
	gate := r.gated("slow", time.Minute)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	entries := p.EnqueueBulk([]string{"slow", "b", "c"}, 1, 0)
	require.Eventually(t, func() bool { return len(r.Calls()) == 1 }, waitFor, tick)
	assert.Equal(t, 3, p.Clear())
	close(gate)

	require.NoError(t, entries[0].Wait(context.Background()))
	for _, e := range entries[1:] {
		assert.True(t, IsKind(e.Wait(context.Background()), ExtractionFailed))
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"slow"}, r.Calls())
	assert.Zero(t, p.Len())
}

func TestPlaylistEstimateWait(t *testing.T) {
	r := newFakeResolver().song("a", 2*time.Minute).song("b", 4*time.Minute)
	r.gated("pending", time.Minute)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	a, _ := p.Enqueue("a", 1, 0)
	b, _ := p.Enqueue("b", 1, 0)
	p.Enqueue("pending", 1, 0)
	p.Enqueue("a", 1, 0)
	require.NoError(t, a.Wait(context.Background()))
	require.NoError(t, b.Wait(context.Background()))

	tests := []struct {
		name     string
		position int
		clock    PlaybackClock
		want     time.Duration
	}{
		{"head with nothing playing", 1, fixedClock{}, 0},
		{"head behind current song", 1, fixedClock{rem: 30 * time.Second, ok: true}, 30 * time.Second},
		{"after resolved entries", 3, fixedClock{}, 6 * time.Minute},
		{"pending entry uses fallback", 4, fixedClock{rem: time.Minute, ok: true}, 10 * time.Minute},
		{"nil clock", 2, nil, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.EstimateWait(tt.position, tt.clock))
		})
	}
}

func TestPlaylistPurgeLongerThan(t *testing.T) {
	r := newFakeResolver().song("a", 120*time.Second).song("b", 400*time.Second).song("c", 200*time.Second)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	entries := p.EnqueueBulk([]string{"a", "b", "c"}, 1, 0)
	for _, e := range entries {
		require.NoError(t, e.Wait(context.Background()))
	}

	assert.Equal(t, 0, p.PurgeLongerThan(entries, 0))
	assert.Equal(t, 1, p.PurgeLongerThan(entries, 300*time.Second))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, EntryResolved, entries[1].Status())

	// Entries the player already took are not touched.
	head := p.PopHead()
	assert.Equal(t, 0, p.PurgeLongerThan([]*Entry{head}, time.Second))
}

func TestPlaylistCountClearShuffle(t *testing.T) {
	r := newFakeResolver()
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	refs := []string{"a", "b", "c", "d", "e"}
	for i, ref := range refs {
		r.song(ref, time.Minute)
		p.Enqueue(ref, snowflake.ID(i%2+1), 0)
	}
	assert.Equal(t, 3, p.CountForRequester(1))
	assert.Equal(t, 2, p.CountForRequester(2))
	assert.Equal(t, 0, p.CountForRequester(3))

	p.Shuffle()
	var got []string
	for e := range p.Entries() {
		got = append(got, e.Reference)
	}
	assert.ElementsMatch(t, refs, got)

	assert.Equal(t, 5, p.Clear())
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Peek())
}

func TestEntryCancel(t *testing.T) {
	r := newFakeResolver()
	r.gated("slow", time.Minute)
	p := NewPlaylist(r, DefaultPlaylistOptions())
	defer p.Close()

	e, _ := p.Enqueue("slow", 1, 0)
	e.Cancel()
	assert.Equal(t, EntryFailed, e.Status())
	assert.ErrorIs(t, e.Wait(context.Background()), context.Canceled)
	_, ok := e.Media()
	assert.False(t, ok)
}
