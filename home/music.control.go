package home

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/musicbot/sys"
)

func handleMusicPause(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}
	if err := s.Player.Pause(); err != nil {
		replyError(event, err)
		return
	}
	s.State.SetAutoPaused(false)
	reply(event, sys.MsgMusicPaused, false)
}

func handleMusicResume(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}
	if err := s.Player.Resume(); err != nil {
		replyError(event, err)
		return
	}
	s.State.SetAutoPaused(false)
	reply(event, sys.MsgMusicResumed, false)
}

func handleMusicVolume(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}

	current := int(math.Round(s.Player.Volume() * 100))
	raw, ok := data.OptString("level")
	if !ok || strings.TrimSpace(raw) == "" {
		reply(event, fmt.Sprintf(sys.MsgMusicVolumeCurrent, current), true)
		return
	}

	level, msg := parseVolume(raw, current)
	if msg != "" {
		reply(event, msg, true)
		return
	}
	if err := s.Player.SetVolume(float64(level) / 100); err != nil {
		replyError(event, err)
		return
	}
	if err := sys.SetGuildVolume(sys.AppContext, guildID, float64(level)/100); err != nil {
		sys.LogDatabase(sys.MsgGenericError, err)
	}
	reply(event, fmt.Sprintf(sys.MsgMusicVolumeUpdated, current, level), false)
}

// parseVolume reads an absolute level (1-100) or a signed change of current.
// On invalid input it returns the message to show instead.
func parseVolume(raw string, current int) (int, string) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	relative := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Sprintf(sys.ErrMusicVolumeInvalid, raw)
	}

	if relative {
		level := current + n
		if level < 1 || level > 100 {
			return 0, fmt.Sprintf(sys.ErrMusicVolumeRelative, current, n, level, 1-current, 100-current)
		}
		return level, ""
	}
	if n < 1 || n > 100 {
		return 0, fmt.Sprintf(sys.ErrMusicVolumeRange, n)
	}
	return n, ""
}

func handleMusicShuffle(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}
	s.Playlist.Shuffle()
	reply(event, fmt.Sprintf(sys.MsgMusicShuffled, s.Playlist.Len()), false)
}

func handleMusicClear(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}
	n := s.Playlist.Clear()
	reply(event, fmt.Sprintf(sys.MsgMusicCleared, n), false)
}
