package home

import (
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

const playingStatusPrefix = "🎶 "

// wireSession subscribes the chat, status and presence side effects to a new
// session's player.
func wireSession(s *proc.Session) {
	p := s.Player

	p.Subscribe(proc.EventPlay, func(ev proc.Event) error {
		if t := discordTransport(s); t != nil {
			t.SetStatus(voiceStatus(ev.Entry))
		}
		kickPresence()
		return announceNowPlaying(s, ev.Entry)
	})
	p.Subscribe(proc.EventPause, func(ev proc.Event) error {
		if t := discordTransport(s); t != nil {
			t.SetStatus(proc.PausedStatusPrefix + trackLabel(ev.Entry))
		}
		kickPresence()
		return nil
	})
	p.Subscribe(proc.EventResume, func(ev proc.Event) error {
		if t := discordTransport(s); t != nil {
			t.SetStatus(voiceStatus(ev.Entry))
		}
		kickPresence()
		return nil
	})
	p.Subscribe(proc.EventFinishedPlaying, autoPlaylist.OnFinished(sys.AppContext, s))
	p.Subscribe(proc.EventIdle, func(proc.Event) error {
		if t := discordTransport(s); t != nil {
			t.SetStatus("")
		}
		kickPresence()
		return nil
	})
	p.Subscribe(proc.EventError, func(ev proc.Event) error {
		kickPresence()
		if ev.Entry == nil || ev.Entry.Channel == 0 {
			return nil
		}
		client := botClient.Load()
		if client == nil {
			return nil
		}
		_, err := client.Rest.CreateMessage(ev.Entry.Channel, discord.NewMessageCreateBuilder().
			SetContent(fmt.Sprintf(sys.ErrMusicFailed, userMessage(ev.Err))).
			Build())
		return err
	})
}

func trackLabel(e *proc.Entry) string {
	if e == nil {
		return ""
	}
	if m, ok := e.Media(); ok && m.Uploader != "" {
		return m.Title + " · " + m.Uploader
	}
	return e.Title()
}

func voiceStatus(e *proc.Entry) string {
	return playingStatusPrefix + trackLabel(e)
}

// announceNowPlaying posts the song to the channel it was requested from.
// The previous announcement is edited when it is still the latest message in
// that channel, otherwise it is replaced. Autoplaylist songs go to the channel
// of the last announcement.
func announceNowPlaying(s *proc.Session, e *proc.Entry) error {
	client := botClient.Load()
	if client == nil || e == nil {
		return nil
	}

	lastChannel, lastMessage := s.State.NowPlaying()
	channelID := e.Channel
	if channelID == 0 {
		channelID = lastChannel
	}
	if channelID == 0 {
		return nil
	}

	content := nowPlayingAnnouncement(s, e)

	if lastMessage != 0 && lastChannel == channelID && isLatestMessage(client, channelID, lastMessage) {
		_, err := client.Rest.UpdateMessage(channelID, lastMessage, discord.NewMessageUpdateBuilder().
			SetContent(content).
			Build())
		if err == nil {
			return nil
		}
	}
	if lastMessage != 0 {
		_ = client.Rest.DeleteMessage(lastChannel, lastMessage)
	}

	msg, err := client.Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		Build())
	if err != nil {
		return err
	}
	s.State.SetNowPlaying(channelID, msg.ID)
	return nil
}

func nowPlayingAnnouncement(s *proc.Session, e *proc.Entry) string {
	where := "voice"
	if t := discordTransport(s); t != nil {
		where = discord.ChannelMention(t.Channel())
	}
	if e.Requester != 0 && musicCfg != nil && musicCfg.Music.NowPlayingMentions {
		return fmt.Sprintf(sys.MsgMusicNowPlayingMent, discord.UserMention(e.Requester), e.Title(), where)
	}
	return fmt.Sprintf(sys.MsgMusicNowPlaying, where, e.Title())
}

func isLatestMessage(client *bot.Client, channelID, messageID snowflake.ID) bool {
	msgs, err := client.Rest.GetMessages(channelID, 0, 0, 0, 1)
	if err != nil || len(msgs) == 0 {
		return false
	}
	return msgs[0].ID == messageID
}
