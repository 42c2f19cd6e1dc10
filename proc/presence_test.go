package proc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceText(t *testing.T) {
	r := newFakeResolver().song("a", time.Minute).song("b", time.Minute)
	reg := NewRegistry(RegistryConfig{Resolver: r})
	defer reg.Shutdown(context.Background())
	factory := func(context.Context, snowflake.ID) (VoiceTransport, error) { return &fakeTransport{}, nil }

	one, err := reg.GetOrCreate(context.Background(), 1, factory)
	require.NoError(t, err)
	two, err := reg.GetOrCreate(context.Background(), 2, factory)
	require.NoError(t, err)

	assert.Empty(t, PresenceText(reg.Sessions()))

	one.Playlist.Enqueue("a", 1, 0)
	require.NoError(t, one.Player.Play(context.Background()))
	assert.Equal(t, "title a", PresenceText(reg.Sessions()))

	require.NoError(t, one.Player.Pause())
	assert.Equal(t, PausedStatusPrefix+"title a", PresenceText(reg.Sessions()))

	two.Playlist.Enqueue("b", 1, 0)
	require.NoError(t, two.Player.Play(context.Background()))
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicPresenceMulti, 2), PresenceText(reg.Sessions()))
}

func TestPresenceKickCollapses(t *testing.T) {
	u := NewPresenceUpdater(NewRegistry(RegistryConfig{Resolver: newFakeResolver()}))
	u.Kick()
	u.Kick()
	u.Kick()
	assert.Len(t, u.kick, 1)
}
