package proc

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/leeineian/musicbot/sys"
)

const presenceDebounce = 2 * time.Second

// PresenceUpdater mirrors what the bot is playing into its Discord activity.
type PresenceUpdater struct {
	registry *Registry
	kick     chan struct{}
	last     string
}

func NewPresenceUpdater(registry *Registry) *PresenceUpdater {
	return &PresenceUpdater{registry: registry, kick: make(chan struct{}, 1)}
}

// Kick schedules a refresh. Calls within the debounce window collapse into
// one update.
func (u *PresenceUpdater) Kick() {
	select {
	case u.kick <- struct{}{}:
	default:
	}
}

// Run applies presence updates until ctx is done.
func (u *PresenceUpdater) Run(ctx context.Context, client *bot.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.kick:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(presenceDebounce):
		}
		// Drain a kick that arrived while waiting.
		select {
		case <-u.kick:
		default:
		}

		u.update(ctx, client)
	}
}

func (u *PresenceUpdater) update(ctx context.Context, client *bot.Client) {
	text := PresenceText(u.registry.Sessions())
	if text == u.last {
		return
	}

	var err error
	if text == "" {
		err = client.SetPresence(ctx, gateway.WithOnlineStatus(discord.OnlineStatusOnline))
	} else {
		err = client.SetPresence(ctx,
			gateway.WithOnlineStatus(discord.OnlineStatusOnline),
			gateway.WithListeningActivity(text),
		)
	}
	if err != nil {
		sys.LogPlayer(sys.MsgGenericError, err)
		return
	}
	u.last = text
}

// PresenceText is the activity line for the given sessions, empty when
// nothing plays.
func PresenceText(sessions []*Session) string {
	var active []*Session
	for _, s := range sessions {
		if s.Player.State().IsActive() && s.Player.Current() != nil {
			active = append(active, s)
		}
	}

	switch len(active) {
	case 0:
		return ""
	case 1:
		p := active[0].Player
		title := sys.Truncate(p.Current().Title(), 120)
		if p.State() == StatePaused {
			return PausedStatusPrefix + title
		}
		return title
	default:
		return fmt.Sprintf(sys.MsgMusicPresenceMulti, len(active))
	}
}
