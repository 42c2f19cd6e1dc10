package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/musicbot/proc"
	"github.com/leeineian/musicbot/sys"
)

const (
	maxSearchResults = 10
	autocompleteSize = 10
)

var presence *proc.PresenceUpdater

func init() {
	minCount, maxCount := 1, maxSearchResults
	searchChoices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(proc.SearchServices))
	for _, name := range []string{"youtube", "ytmusic", "soundcloud"} {
		searchChoices = append(searchChoices, discord.ApplicationCommandOptionChoiceString{Name: name, Value: name})
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "music",
		Description: "Music player",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Queue a song or playlist by URL or search",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "A URL, playlist or search terms",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "search",
				Description: "Search a service and pick a result",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "query",
						Description: "What to search for",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "service",
						Description: "Where to search (default youtube)",
						Required:    false,
						Choices:     searchChoices,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "count",
						Description: "How many results to show (default 3)",
						Required:    false,
						MinValue:    &minCount,
						MaxValue:    &maxCount,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Vote to skip the current song",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pause",
				Description: "Pause playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "resume",
				Description: "Resume playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "volume",
				Description: "Show or change the volume",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "level",
						Description: "1-100, or a change like +10 / -5",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "np",
				Description: "Show the current song",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "clear",
				Description: "Clear the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "summon",
				Description: "Bring the bot to your voice channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "disconnect",
				Description: "Stop playback and leave",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pldump",
				Description: "Dump the song URLs of a playlist to a file",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "url",
						Description: "Playlist URL",
						Required:    true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}
		if registry == nil {
			return
		}

		switch *data.SubCommandName {
		case "play":
			handleMusicPlay(event, data)
		case "search":
			handleMusicSearch(event, data)
		case "skip":
			handleMusicSkip(event, data)
		case "pause":
			handleMusicPause(event, data)
		case "resume":
			handleMusicResume(event, data)
		case "volume":
			handleMusicVolume(event, data)
		case "queue":
			handleMusicQueue(event, data)
		case "np":
			handleMusicNowPlaying(event, data)
		case "shuffle":
			handleMusicShuffle(event, data)
		case "clear":
			handleMusicClear(event, data)
		case "summon":
			handleMusicSummon(event, data)
		case "disconnect":
			handleMusicDisconnect(event, data)
		case "pldump":
			handleMusicPlaylistDump(event, data)
		}
	})

	sys.RegisterAutocompleteHandler("music", handleMusicAutocomplete)
	sys.RegisterComponentHandler(pickPrefix, handleMusicPick)
	sys.RegisterVoiceStateUpdateHandler(handleMusicVoiceState)

	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		botClient.Store(client)
	})

	sys.RegisterDaemon(sys.LogPlayer, func(ctx context.Context) (bool, func(), func()) {
		if registry == nil {
			return false, nil, nil
		}
		client := botClient.Load()
		if client == nil {
			return false, nil, nil
		}
		presence = proc.NewPresenceUpdater(registry)
		run := func() { presence.Run(ctx, client) }
		shutdown := func() {
			sys.LogVoice(sys.MsgVoiceShutdown)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			registry.Shutdown(shutdownCtx)
		}
		return true, run, shutdown
	})
}

func kickPresence() {
	if presence != nil {
		presence.Kick()
	}
}

func handleMusicAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "query" || resolver == nil {
		_ = event.AutocompleteResult(nil)
		return
	}
	query := focused.String()
	if query == "" {
		_ = event.AutocompleteResult(nil)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, 2500*time.Millisecond)
	defer cancel()
	results, err := resolver.Search(ctx, query, autocompleteSize)
	if err != nil {
		_ = event.AutocompleteResult(nil)
		return
	}
	_ = event.AutocompleteResult(autocompleteChoices(results))
}

// autocompleteChoices maps search results to choices. URLs longer than the
// choice value limit fall back to the title, which is searched again on play.
func autocompleteChoices(results []proc.SearchResult) []discord.AutocompleteChoice {
	choices := make([]discord.AutocompleteChoice, 0, len(results))
	for _, r := range results {
		if len(choices) >= 25 {
			break
		}
		name := sys.Truncate(r.Title, 100)
		if r.Uploader != "" {
			name = sys.TruncateWithPreserve(r.Title, 100, "", " - "+r.Uploader)
		}
		value := r.URL
		if len(value) > 100 {
			value = sys.Truncate(r.Title, 100)
		}
		choices = append(choices, discord.AutocompleteChoiceString{Name: name, Value: value})
	}
	return choices
}
