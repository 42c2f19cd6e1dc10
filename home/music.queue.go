package home

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

const queueMessageLimit = 1900

func handleMusicQueue(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}

	names := memberNames(event.Client(), guildID)
	entries := slices.Collect(s.Playlist.Entries())
	content := formatQueue(s.Player.Current(), s.Player.State(), s.Player.Progress(), entries, names)
	reply(event, content, false)
}

func handleMusicNowPlaying(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}
	e := s.Player.Current()
	if e == nil {
		reply(event, sys.MsgMusicNothingPlaying, true)
		return
	}
	reply(event, nowPlayingLine(e, s.Player.State(), s.Player.Progress(), memberNames(event.Client(), guildID)), false)
}

// memberNames resolves requester ids to display names from the member cache.
func memberNames(client *bot.Client, guildID snowflake.ID) func(snowflake.ID) string {
	return func(id snowflake.ID) string {
		if m, ok := client.Caches.Member(guildID, id); ok {
			return m.EffectiveName()
		}
		return id.String()
	}
}

func stateLabel(st proc.State) string {
	if st == proc.StatePaused {
		return "⏸️"
	}
	return "▶️"
}

func nowPlayingLine(e *proc.Entry, st proc.State, progress time.Duration, nameOf func(snowflake.ID) string) string {
	total, _ := e.Duration()
	prog := stateLabel(st) + " `" + sys.FormatProgress(progress, total) + "`"
	line := fmt.Sprintf(sys.MsgMusicNowPlayingProg, e.Title(), prog)
	if e.Requester != 0 {
		line = fmt.Sprintf(sys.MsgMusicNowPlayingBy, e.Title(), nameOf(e.Requester), prog)
	}
	if m, ok := e.Media(); ok && m.URL != "" {
		line += "\n<" + m.URL + ">"
	}
	return line
}

// formatQueue renders the current song followed by the queue, cut off with a
// count of the rest once the message would get too long.
func formatQueue(current *proc.Entry, st proc.State, progress time.Duration, entries []*proc.Entry, nameOf func(snowflake.ID) string) string {
	if current == nil && len(entries) == 0 {
		return sys.MsgMusicNothingPlaying
	}

	var lines []string
	size := 0
	if current != nil {
		l := nowPlayingLine(current, st, progress, nameOf)
		lines = append(lines, l)
		size += len(l) + 1
	}
	for i, e := range entries {
		l := fmt.Sprintf("`%d.` **%s**", i+1, sys.Truncate(e.Title(), 80))
		if e.Requester != 0 {
			l += " added by **" + nameOf(e.Requester) + "**"
		}
		if size+len(l)+1 > queueMessageLimit {
			lines = append(lines, fmt.Sprintf(sys.MsgMusicQueueMore, len(entries)-i))
			break
		}
		lines = append(lines, l)
		size += len(l) + 1
	}
	return strings.Join(lines, "\n")
}

func handleMusicPlaylistDump(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if _, ok := guard(event); !ok {
		return
	}
	url := strings.Trim(strings.TrimSpace(data.String("url")), "<>")

	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(sys.AppContext, 2*time.Minute)
	defer cancel()
	res, err := resolver.Resolve(ctx, url, proc.ResolveOptions{Process: false})
	if err != nil {
		editReply(event, fmt.Sprintf(sys.ErrMusicFailed, userMessage(err)))
		return
	}
	if !res.IsExpansion() {
		editReply(event, sys.ErrMusicPlaylistNotFound)
		return
	}

	body := strings.Join(res.References, "\r\n") + "\r\n"
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(fmt.Sprintf(sys.MsgMusicPlaylistDump, url)).
		AddFiles(discord.NewFile("playlist.txt", "Playlist URLs", strings.NewReader(body))).
		Build())
}
