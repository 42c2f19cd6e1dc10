package home

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

var (
	musicCfg     *sys.Config
	resolver     *proc.YtdlpResolver
	registry     *proc.Registry
	autoPlaylist *proc.AutoPlaylist
	botClient    atomic.Pointer[bot.Client]
)

// Setup builds the music engine from the loaded configuration. It must run
// before the client connects.
func Setup(cfg *sys.Config, store proc.AutoPlaylistStore) {
	m := cfg.Music
	musicCfg = cfg
	resolver = proc.NewYtdlpResolver(proc.YtdlpOptions{
		CacheDir:      m.AudioCacheDir,
		YoutubePrefix: m.YoutubePrefix,
		YTMusicPrefix: m.YTMusicPrefix,
	})
	registry = proc.NewRegistry(proc.RegistryConfig{
		Resolver: resolver,
		Playlist: proc.PlaylistOptions{
			ResolveConcurrency: m.ResolveConcurrency,
			ResolveTimeout:     m.ResolveTimeout,
			FallbackDuration:   m.FallbackDuration,
			Download:           m.DownloadAudio,
		},
		Player: proc.PlayerOptions{
			Volume:           m.DefaultVolume,
			TransportRetries: 3,
			TransportBackoff: 500 * time.Millisecond,
		},
		Session: proc.SessionOptions{
			SkipsRequired:     m.SkipsRequired,
			SkipRatio:         m.SkipRatio,
			MaxSongsPerUser:   m.MaxSongsPerUser,
			MaxSongLength:     m.MaxSongDuration(),
			MaxPlaylistLength: m.MaxPlaylistLength,
		},
		Volume: storedVolume,
	})
	autoPlaylist = proc.NewAutoPlaylist(store, resolver, m.UseAutoPlaylist)
	registry.Wire(wireSession)
	registry.OnDestroy(func(*proc.Session) { kickPresence() })
}

func storedVolume(ctx context.Context, guildID snowflake.ID) (float64, bool) {
	v, ok, err := sys.GetGuildVolume(ctx, guildID)
	if err != nil {
		sys.LogDatabase(sys.MsgGenericError, err)
		return 0, false
	}
	return v, ok
}

func joinFactory(client *bot.Client, channelID snowflake.ID) proc.TransportFactory {
	return func(ctx context.Context, guildID snowflake.ID) (proc.VoiceTransport, error) {
		t, err := proc.JoinVoice(ctx, client, guildID, channelID)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// discordTransport returns the session's Discord transport, nil for other
// transports.
func discordTransport(s *proc.Session) *proc.DiscordTransport {
	t, _ := s.Transport().(*proc.DiscordTransport)
	return t
}

// --- Interaction helpers ---

func reply(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(ephemeral).
		Build())
}

func replyError(event *events.ApplicationCommandInteractionCreate, err error) {
	reply(event, fmt.Sprintf(sys.ErrMusicFailed, userMessage(err)), true)
}

func editReply(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(content).
		Build())
}

// userMessage is the part of an error worth showing in chat.
func userMessage(err error) string {
	var pe *proc.Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// guard runs the checks every /music subcommand shares and returns the guild
// id. It replies and returns false when the command may not run.
func guard(event *events.ApplicationCommandInteractionCreate) (snowflake.ID, bool) {
	guildID := event.GuildID()
	if guildID == nil {
		reply(event, sys.ErrMusicGuildOnly, true)
		return 0, false
	}
	userID := event.User().ID
	if isOwner(userID) {
		return *guildID, true
	}
	blocked, err := sys.IsBlacklisted(context.Background(), userID)
	if err != nil {
		sys.LogDatabase(sys.MsgGenericError, err)
	}
	if blocked {
		reply(event, sys.ErrMusicBlacklisted, true)
		return 0, false
	}
	return *guildID, true
}

func isOwner(userID snowflake.ID) bool {
	return musicCfg != nil && musicCfg.IsOwner(userID)
}

// hasInstaskip reports whether the member holds one of the instaskip roles.
func hasInstaskip(member *discord.ResolvedMember) bool {
	if member == nil || musicCfg == nil {
		return false
	}
	for _, role := range musicCfg.Music.InstaskipRoleIDs() {
		if slices.Contains(member.RoleIDs, role) {
			return true
		}
	}
	return false
}

func userVoiceChannel(client *bot.Client, guildID, userID snowflake.ID) (snowflake.ID, bool) {
	vs, ok := client.Caches.VoiceState(guildID, userID)
	if !ok || vs.ChannelID == nil {
		return 0, false
	}
	return *vs.ChannelID, true
}

// listeners counts the non-bot members in channelID other than the bot.
func listeners(client *bot.Client, guildID, channelID snowflake.ID) int {
	n := 0
	for state := range client.Caches.VoiceStates(guildID) {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == client.ID() {
			continue
		}
		if m, ok := client.Caches.Member(guildID, state.UserID); ok && m.User.Bot {
			continue
		}
		n++
	}
	return n
}

// eligibleVoters are the listeners who may vote: not deafened, not an owner
// and not blacklisted.
func eligibleVoters(client *bot.Client, guildID, channelID snowflake.ID) int {
	n := 0
	for state := range client.Caches.VoiceStates(guildID) {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == client.ID() {
			continue
		}
		if state.SelfDeaf || state.GuildDeaf || isOwner(state.UserID) {
			continue
		}
		if m, ok := client.Caches.Member(guildID, state.UserID); ok && m.User.Bot {
			continue
		}
		if blocked, _ := sys.IsBlacklisted(context.Background(), state.UserID); blocked {
			continue
		}
		n++
	}
	return n
}

// connectedSession returns the guild's session or replies that the bot is not
// connected.
func connectedSession(event *events.ApplicationCommandInteractionCreate, guildID snowflake.ID) *proc.Session {
	s := registry.Get(guildID)
	if s == nil {
		reply(event, sys.ErrMusicNotConnected, true)
	}
	return s
}

// --- Search picks ---

// searchCache keeps the last search results of each user for the pick
// buttons.
type searchCache struct {
	mu      sync.Mutex
	results map[snowflake.ID][]proc.SearchResult
}

var searches = &searchCache{results: make(map[snowflake.ID][]proc.SearchResult)}

func (c *searchCache) put(user snowflake.ID, rs []proc.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[user] = rs
}

func (c *searchCache) take(user snowflake.ID, i int) (proc.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := c.results[user]
	if i < 0 || i >= len(rs) {
		return proc.SearchResult{}, false
	}
	delete(c.results, user)
	return rs[i], true
}
