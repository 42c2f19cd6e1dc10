package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

func handleMusicSummon(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	client := event.Client()
	channelID, ok := userVoiceChannel(client, guildID, event.User().ID)
	if !ok {
		reply(event, sys.ErrMusicNotInVoice, true)
		return
	}

	_ = event.DeferCreateMessage(false)

	if s := registry.Get(guildID); s != nil {
		if t := discordTransport(s); t != nil && t.Channel() != channelID {
			// The voice-state handler follows the move once Discord confirms it.
			ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
			defer cancel()
			if err := client.UpdateVoiceState(ctx, guildID, &channelID, false, false); err != nil {
				editReply(event, fmt.Sprintf(sys.ErrMusicFailed, err.Error()))
				return
			}
		}
		editReply(event, fmt.Sprintf(sys.MsgMusicSummoned, discord.ChannelMention(channelID)))
		return
	}

	sys.LogVoice(sys.MsgVoiceJoining, channelID, guildID)
	if _, err := registry.GetOrCreate(sys.AppContext, guildID, joinFactory(client, channelID)); err != nil {
		sys.LogVoice(sys.MsgVoiceJoinFail, guildID, err)
		editReply(event, fmt.Sprintf(sys.ErrMusicFailed, userMessage(err)))
		return
	}
	editReply(event, fmt.Sprintf(sys.MsgMusicSummoned, discord.ChannelMention(channelID)))
}

func handleMusicDisconnect(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	if registry.Get(guildID) == nil {
		reply(event, sys.ErrMusicNotConnected, true)
		return
	}
	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
	defer cancel()
	registry.Destroy(ctx, guildID)
	editReply(event, sys.MsgMusicDisconnected)
}

func handleMusicVoiceState(event *events.GuildVoiceStateUpdate) {
	if registry == nil {
		return
	}
	guildID := event.VoiceState.GuildID
	s := registry.Get(guildID)
	if s == nil {
		return
	}
	client := event.Client()

	if event.VoiceState.UserID == client.ID() {
		if event.VoiceState.ChannelID == nil {
			sys.LogVoice(sys.MsgVoiceDisconnected, guildID)
			registry.Destroy(context.Background(), guildID)
			return
		}
		if t := discordTransport(s); t != nil && t.Channel() != *event.VoiceState.ChannelID {
			t.Moved(*event.VoiceState.ChannelID)
		}
		return
	}

	if musicCfg == nil || !musicCfg.Music.AutoPause {
		return
	}
	t := discordTransport(s)
	if t == nil {
		return
	}
	autoPause(s, guildID, listeners(client, guildID, t.Channel()))
}

// autoPause pauses a playing session once nobody listens and resumes it when
// someone returns. Sessions paused by a command are left alone.
func autoPause(s *proc.Session, guildID snowflake.ID, humans int) {
	switch {
	case humans == 0 && s.Player.State() == proc.StatePlaying:
		if err := s.Player.Pause(); err != nil {
			return
		}
		s.State.SetAutoPaused(true)
		sys.LogVoice(sys.MsgVoiceAutoPause, guildID)
	case humans > 0 && s.State.AutoPaused():
		s.State.SetAutoPaused(false)
		if s.Player.State() != proc.StatePaused {
			return
		}
		if err := s.Player.Resume(); err != nil {
			return
		}
		sys.LogVoice(sys.MsgVoiceAutoResume, guildID)
	}
}
