package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/leeineian/musicbot/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator
	userOption := discord.ApplicationCommandOptionUser{
		Name:        "user",
		Description: "The user",
		Required:    true,
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "blacklist",
		Description:              "Manage who may use the music player (Owner Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Stop a user from using the music player",
				Options:     []discord.ApplicationCommandOption{userOption},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Let a blacklisted user use the music player again",
				Options:     []discord.ApplicationCommandOption{userOption},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}
		handleBlacklist(event, data, *data.SubCommandName)
	})
}

func handleBlacklist(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, action string) {
	if !isOwner(event.User().ID) {
		reply(event, sys.ErrMusicOwnerOnly, true)
		return
	}
	user, ok := data.OptUser("user")
	if !ok {
		reply(event, sys.ErrMusicBlacklistNoTarget, true)
		return
	}

	var (
		n   int
		err error
		msg string
	)
	switch action {
	case "add":
		if isOwner(user.ID) {
			reply(event, sys.ErrMusicBlacklistOwner, true)
			return
		}
		n, err = sys.AddToBlacklist(sys.AppContext, user.ID)
		msg = sys.MsgMusicBlacklistAdded
	case "remove":
		n, err = sys.RemoveFromBlacklist(sys.AppContext, user.ID)
		msg = sys.MsgMusicBlacklistRemove
	default:
		return
	}
	if err != nil {
		sys.LogDatabase(sys.MsgGenericError, err)
		replyError(event, err)
		return
	}
	reply(event, fmt.Sprintf(msg, n), true)
}
