package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

func handleMusicSkip(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID, ok := guard(event)
	if !ok {
		return
	}
	s := connectedSession(event, guildID)
	if s == nil {
		return
	}

	client := event.Client()
	eligible := 0
	if t := discordTransport(s); t != nil {
		eligible = eligibleVoters(client, guildID, t.Channel())
	}

	userID := event.User().ID
	out, err := s.RequestSkip(proc.SkipRequest{
		Voter:     userID,
		IsOwner:   isOwner(userID),
		Instaskip: hasInstaskip(event.Member()),
		Eligible:  eligible,
	})
	if err != nil {
		if proc.IsKind(err, proc.InvalidStateTransition) {
			reply(event, sys.ErrMusicNotPlaying, true)
			return
		}
		replyError(event, err)
		return
	}
	reply(event, skipMessage(out, s.Playlist.Len() > 0), false)
}

func skipMessage(out proc.SkipOutcome, hasNext bool) string {
	if out.Pending {
		if out.Skipped {
			return sys.MsgMusicSkipPending
		}
		return sys.ErrMusicSkipLoading
	}
	title := out.Entry.Title()
	if out.Bypassed {
		return fmt.Sprintf(sys.MsgMusicSkipped, title)
	}
	if out.Skipped {
		next := ""
		if hasNext {
			next = sys.MsgMusicSkipNext
		}
		return fmt.Sprintf(sys.MsgMusicSkipAccepted, title, next)
	}
	remaining := out.Required - out.Votes
	return fmt.Sprintf(sys.MsgMusicSkipRemaining, title, remaining, sys.Plural(remaining, "person is", "people are"))
}
