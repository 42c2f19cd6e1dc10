package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

const pickPrefix = "music:pick:"

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	query := strings.TrimSpace(data.String("query"))

	_ = event.DeferCreateMessage(false)

	content, err := enqueue(event.Client(), guildID, event.User().ID, event.Channel().ID(), query, func(n int) {
		editReply(event, importNotice(n))
	})
	if err != nil {
		editReply(event, fmt.Sprintf(sys.ErrMusicFailed, userMessage(err)))
		return
	}
	editReply(event, content)
}

// enqueue joins the requester's channel if needed, submits the reference and
// starts the player. It returns the confirmation text.
func enqueue(client *bot.Client, guildID, userID, channelID snowflake.ID, query string, onExpand func(int)) (string, error) {
	s, err := sessionFor(client, guildID, userID)
	if err != nil {
		return "", err
	}

	limits := s.Limits()
	if isOwner(userID) {
		limits = proc.Limits{}
	}
	ctx := sys.AppContext
	sub, err := s.Submit(ctx, query, userID, channelID, proc.SubmitOptions{Limits: limits, OnExpand: onExpand})
	if err != nil {
		return "", err
	}

	if !sub.IsPlaylist() {
		// Report unplayable songs right away rather than on their turn.
		if err := sub.Entries[0].Wait(ctx); err != nil {
			return "", err
		}
	}

	stopped := s.Player.State() == proc.StateStopped
	if stopped {
		sys.SafeGo(func() {
			if err := s.Player.Play(sys.AppContext); err != nil && !proc.IsKind(err, proc.InvalidStateTransition) {
				sys.LogPlayer(sys.MsgGenericError, err)
			}
		})
	}
	return queuedMessage(sub, stopped, time.Now()), nil
}

// sessionFor returns the guild's session, joining the requester's voice
// channel when the bot is not connected yet.
func sessionFor(client *bot.Client, guildID, userID snowflake.ID) (*proc.Session, error) {
	if s := registry.Get(guildID); s != nil {
		return s, nil
	}
	channelID, ok := userVoiceChannel(client, guildID, userID)
	if !ok {
		return nil, errors.New(sys.ErrMusicNotInVoice)
	}
	sys.LogVoice(sys.MsgVoiceJoining, channelID, guildID)
	s, err := registry.GetOrCreate(sys.AppContext, guildID, joinFactory(client, channelID))
	if err != nil {
		sys.LogVoice(sys.MsgVoiceJoinFail, guildID, err)
		return nil, err
	}
	return s, nil
}

func queuedMessage(sub *proc.Submission, stopped bool, now time.Time) string {
	position := sys.MsgMusicQueuedNext
	if sub.Position > 1 || !stopped {
		position = fmt.Sprintf(sys.MsgMusicQueuedETA, sub.Position, sys.FormatETA(now, sub.ETA))
	}
	if !sub.IsPlaylist() {
		return fmt.Sprintf(sys.MsgMusicQueued, sub.Entries[0].Title(), position)
	}
	msg := fmt.Sprintf(sys.MsgMusicPlaylistQueued, len(sub.Entries), position)
	if sub.Dropped > 0 {
		msg += fmt.Sprintf(sys.MsgMusicPlaylistDropped, sub.Dropped)
	}
	return msg
}

func importNotice(n int) string {
	eta := ""
	if n > 10 {
		eta = fmt.Sprintf(" (ETA: %s)", sys.FormatClock(time.Duration(float64(n)*sys.ImportSecondsPerSong*float64(time.Second))))
	}
	return fmt.Sprintf(sys.MsgMusicPlaylistWorking, n, eta)
}

// --- Search ---

func handleMusicSearch(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if _, ok := guard(event); !ok {
		return
	}
	query := strings.TrimSpace(data.String("query"))
	service, ok := data.OptString("service")
	if !ok {
		service = "youtube"
	}
	count := 3
	if c, ok := data.OptInt("count"); ok {
		count = c
	}
	if count > maxSearchResults {
		reply(event, fmt.Sprintf(sys.ErrMusicSearchTooMany, maxSearchResults), true)
		return
	}

	_ = event.DeferCreateMessage(false)
	editReply(event, sys.MsgMusicSearching)

	ctx, cancel := context.WithTimeout(sys.AppContext, 30*time.Second)
	defer cancel()
	results, err := resolver.SearchService(ctx, service, query, count)
	if err != nil {
		editReply(event, fmt.Sprintf(sys.ErrMusicFailed, userMessage(err)))
		return
	}
	if len(results) == 0 {
		editReply(event, sys.ErrMusicSearchEmpty)
		return
	}

	searches.put(event.User().ID, results)
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(fmt.Sprintf(sys.MsgMusicSearchResults, query, searchListing(results))).
		SetComponents(pickButtons(event.User().ID, len(results))...).
		Build())
}

func searchListing(results []proc.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		line := fmt.Sprintf("`%d.` **%s**", i+1, sys.Truncate(r.Title, 80))
		if r.Uploader != "" {
			line += " - " + r.Uploader
		}
		if r.Duration > 0 {
			line += " `" + sys.FormatClock(r.Duration) + "`"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// pickButtons lays out one numbered button per result, five to a row. The
// custom id carries the user so only the searcher can pick.
func pickButtons(userID snowflake.ID, n int) []discord.LayoutComponent {
	var rows []discord.LayoutComponent
	var row []discord.InteractiveComponent
	for i := range n {
		id := pickPrefix + userID.String() + ":" + strconv.Itoa(i)
		row = append(row, discord.NewButton(discord.ButtonStylePrimary, strconv.Itoa(i+1), id, "", 0))
		if len(row) == 5 {
			rows = append(rows, discord.NewActionRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discord.NewActionRow(row...))
	}
	return rows
}

func handleMusicPick(event *events.ComponentInteractionCreate) {
	parts := strings.Split(event.Data.CustomID(), ":")
	if len(parts) != 4 {
		return
	}
	owner, err := snowflake.Parse(parts[2])
	if err != nil || owner != event.User().ID {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(sys.ErrMusicNotYourSearch).
			SetEphemeral(true).
			Build())
		return
	}
	index, err := strconv.Atoi(parts[3])
	if err != nil {
		return
	}
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	picked, ok := searches.take(owner, index)
	if !ok {
		_ = event.DeferUpdateMessage()
		return
	}

	_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(sys.MsgMusicSearchPicked).
		ClearComponents().
		Build())

	content, err := enqueue(event.Client(), *guildID, owner, event.Channel().ID(), picked.URL, nil)
	if err != nil {
		content = fmt.Sprintf(sys.ErrMusicFailed, userMessage(err))
	}
	_, _ = event.Client().Rest.CreateMessage(event.Channel().ID(), discord.NewMessageCreateBuilder().
		SetContent(content).
		Build())
}
