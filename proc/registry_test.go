package proc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreateBuildsOnce(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Resolver: newFakeResolver()})
	defer reg.Shutdown(context.Background())

	var built atomic.Int32
	var wired atomic.Int32
	reg.Wire(func(*Session) { wired.Add(1) })
	factory := func(context.Context, snowflake.ID) (VoiceTransport, error) {
		built.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &fakeTransport{}, nil
	}

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := reg.GetOrCreate(context.Background(), 7, factory)
			assert.NoError(t, err)
			sessions[i] = s
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, built.Load())
	assert.EqualValues(t, 1, wired.Load())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Len(t, reg.Sessions(), 1)
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Resolver: newFakeResolver()})
	_, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return nil, errors.New("no permission to connect")
	})
	require.Error(t, err)
	assert.Nil(t, reg.Get(1))
}

func TestRegistryStoredVolume(t *testing.T) {
	reg := NewRegistry(RegistryConfig{
		Resolver: newFakeResolver(),
		Volume: func(_ context.Context, key snowflake.ID) (float64, bool) {
			return 0.6, key == 2
		},
	})
	defer reg.Shutdown(context.Background())
	factory := func(context.Context, snowflake.ID) (VoiceTransport, error) { return &fakeTransport{}, nil }

	a, err := reg.GetOrCreate(context.Background(), 1, factory)
	require.NoError(t, err)
	b, err := reg.GetOrCreate(context.Background(), 2, factory)
	require.NoError(t, err)

	assert.Equal(t, DefaultPlayerOptions().Volume, a.Player.Volume())
	assert.Equal(t, 0.6, b.Player.Volume())
}

func TestRegistryDestroy(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute).song("b", time.Minute)
	tr := &fakeTransport{}
	reg := NewRegistry(RegistryConfig{Resolver: r})

	var destroyed atomic.Int32
	reg.OnDestroy(func(*Session) { destroyed.Add(1) })

	s, err := reg.GetOrCreate(context.Background(), 3, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return tr, nil
	})
	require.NoError(t, err)
	rec := record(s.Player, EventStop, EventFinishedPlaying, EventIdle)

	s.Playlist.Enqueue("a", 1, 0)
	s.Playlist.Enqueue("b", 1, 0)
	require.NoError(t, s.Player.Play(context.Background()))

	reg.Destroy(context.Background(), 3)
	reg.Destroy(context.Background(), 3)

	assert.Nil(t, reg.Get(3))
	reg.mu.Lock()
	assert.Empty(t, reg.locks, "guild locks are released with the session")
	reg.mu.Unlock()
	assert.True(t, tr.isClosed())
	assert.EqualValues(t, 1, destroyed.Load())
	assert.Equal(t, 0, s.Playlist.Len())
	assert.Equal(t, StateStopped, s.Player.State())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.kinds())
}

func TestSessionReloadTransport(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute)
	reg := NewRegistry(RegistryConfig{Resolver: r})
	defer reg.Shutdown(context.Background())
	s, err := reg.GetOrCreate(context.Background(), 1, func(context.Context, snowflake.ID) (VoiceTransport, error) {
		return &fakeTransport{}, nil
	})
	require.NoError(t, err)

	s.Playlist.Enqueue("a", 1, 0)
	require.NoError(t, s.Player.Play(context.Background()))

	next := &fakeTransport{}
	require.NoError(t, s.ReloadTransport(next))
	assert.Same(t, next, s.Transport())
	assert.Equal(t, 1, next.count())
	assert.Equal(t, StatePlaying, s.Player.State())
}
