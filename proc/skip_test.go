package proc

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredSkips(t *testing.T) {
	tests := []struct {
		eligible, absolute int
		ratio              float64
		want               int
	}{
		{10, 4, 0.5, 4},
		{3, 4, 0.5, 2},
		{5, 4, 0.5, 3},
		{1, 4, 0.5, 1},
		{0, 4, 0.5, 0},
		{10, 0, 0.5, 0},
		{6, 10, 1, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredSkips(tt.eligible, tt.absolute, tt.ratio),
			"eligible=%d absolute=%d ratio=%v", tt.eligible, tt.absolute, tt.ratio)
	}
}

func TestSkipVoteTrackerCountsDistinctVoters(t *testing.T) {
	v := NewSkipVoteTracker()
	assert.Equal(t, 1, v.AddSkipper(1))
	assert.Equal(t, 1, v.AddSkipper(1))
	assert.Equal(t, 2, v.AddSkipper(2))
	assert.Equal(t, 2, v.Count())
	v.Reset()
	assert.Equal(t, 0, v.Count())
}

func newSkipSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	r := newFakeResolver().song("a", time.Minute).song("b", time.Minute)
	tr := &fakeTransport{}
	reg := NewRegistry(RegistryConfig{
		Resolver: r,
		Playlist: DefaultPlaylistOptions(),
		Player:   PlayerOptions{TransportRetries: 1},
		Session:  SessionOptions{SkipsRequired: 4, SkipRatio: 0.5},
	})
	s, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return tr, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { reg.Shutdown(context.Background()) })

	s.Playlist.Enqueue("a", 100, 0)
	s.Playlist.Enqueue("b", 100, 0)
	require.NoError(t, s.Player.Play(context.Background()))
	return s, tr
}

func TestRequestSkipVotes(t *testing.T) {
	s, _ := newSkipSession(t)

	out, err := s.RequestSkip(SkipRequest{Voter: 1, Eligible: 5})
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 1, out.Votes)
	assert.Equal(t, 3, out.Required)

	out, _ = s.RequestSkip(SkipRequest{Voter: 1, Eligible: 5})
	assert.Equal(t, 1, out.Votes)

	out, _ = s.RequestSkip(SkipRequest{Voter: 2, Eligible: 5})
	assert.False(t, out.Skipped)

	out, err = s.RequestSkip(SkipRequest{Voter: 3, Eligible: 5})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.False(t, out.Bypassed)
	assert.Equal(t, "a", out.Entry.Reference)

	require.Eventually(t, func() bool {
		e := s.Player.Current()
		return e != nil && e.Reference == "b" && s.Skips.Count() == 0
	}, waitFor, tick)
}

func TestRequestSkipBypass(t *testing.T) {
	tests := []struct {
		name string
		req  SkipRequest
	}{
		{"requester", SkipRequest{Voter: 100, Eligible: 10}},
		{"owner", SkipRequest{Voter: 5, IsOwner: true, Eligible: 10}},
		{"instaskip role", SkipRequest{Voter: 6, Instaskip: true, Eligible: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSkipSession(t)
			out, err := s.RequestSkip(tt.req)
			require.NoError(t, err)
			assert.True(t, out.Skipped)
			assert.True(t, out.Bypassed)
			assert.Zero(t, out.Votes)
		})
	}
}

func TestRequestSkipNothingLoaded(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Resolver: newFakeResolver()})
	defer reg.Shutdown(context.Background())
	s, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return &fakeTransport{}, nil
	})
	require.NoError(t, err)

	_, err = s.RequestSkip(SkipRequest{Voter: 1, Eligible: 3})
	assert.True(t, IsKind(err, InvalidStateTransition))
}

func TestRequestSkipPendingHead(t *testing.T) {
	tests := []struct {
		name    string
		req     SkipRequest
		skipped bool
	}{
		{"other listener has to wait", SkipRequest{Voter: 200, Eligible: 10}, false},
		{"requester drops it", SkipRequest{Voter: 100, Eligible: 10}, true},
		{"owner drops it", SkipRequest{Voter: 5, IsOwner: true, Eligible: 10}, true},
		{"instaskip role drops it", SkipRequest{Voter: 6, Instaskip: true, Eligible: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeResolver()
			gate := r.gated("slow", time.Minute)
			t.Cleanup(func() { close(gate) })

			reg := NewRegistry(RegistryConfig{
				Resolver: r,
				Session:  SessionOptions{SkipsRequired: 4, SkipRatio: 0.5},
			})
			t.Cleanup(func() { reg.Shutdown(context.Background()) })
			s, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
				return &fakeTransport{}, nil
			})
			require.NoError(t, err)

			slow, _ := s.Playlist.Enqueue("slow", 100, 0)
			go func() { _ = s.Player.Play(context.Background()) }()
			require.Eventually(t, func() bool { return s.Player.Pending() != nil }, waitFor, tick)

			out, err := s.RequestSkip(tt.req)
			require.NoError(t, err)
			assert.True(t, out.Pending)
			assert.Same(t, slow, out.Entry)
			assert.Equal(t, tt.skipped, out.Skipped)
			assert.Equal(t, tt.skipped, out.Bypassed)
			assert.Zero(t, out.Votes)
			assert.Zero(t, s.Skips.Count())

			if tt.skipped {
				assert.Equal(t, EntryFailed, slow.Status())
			} else {
				assert.Equal(t, EntryPending, slow.Status())
				assert.Same(t, slow, s.Player.Pending())
			}
		})
	}
}
