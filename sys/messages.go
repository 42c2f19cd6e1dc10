package sys

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgConfigOptionsError  = "failed to read music options %s: %w"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgAutoPlaylistSeeded  = "Imported %d autoplaylist entries from %s"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgBotAPIStatusError   = "discord API returned status %d"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands       = "Syncing %s commands..."
	MsgLoaderUpToDate           = "Commands are up to date. (Hash: %s)"
	MsgLoaderCleanup            = "[CLEANUP] Removing commands from previous dev guild: %s"
	MsgLoaderDevStarting        = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered      = "[DEV] Registered: %s"
	MsgLoaderDevFail            = "[DEV] Registration failed: %v"
	MsgLoaderDevGlobalClear     = "[DEV] Verifying global commands are cleared..."
	MsgLoaderDevGlobalClearFail = "[DEV] Global clear skipped (likely rate limited): %v"
	MsgLoaderProdStarting       = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered     = "[PROD] Registered: %s"
	MsgLoaderProdFail           = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered     = "Panic recovered in handler: %v"

	// --- Player & Playlist ---
	MsgPlayerStarted        = "Playing in guild %s: %s"
	MsgPlayerFinished       = "Finished in guild %s: %s"
	MsgPlayerIdle           = "Playlist empty in guild %s"
	MsgPlayerSkipPending    = "Dropped pending head in guild %s: %s"
	MsgPlayerTransportRetry = "Transport failed in guild %s (attempt %d/%d): %v"
	MsgPlayerTransportFatal = "Giving up on transport in guild %s: %v"
	MsgPlayerStreamDropped  = "Stream dropped in guild %s: %v, reopening"
	MsgPlayerSubscriberFail = "Subscriber for %s failed in guild %s: %v"
	MsgPlaylistResolveFail  = "Resolution failed for %s: %v"
	MsgPlaylistDropped      = "Dropped %d entries over the duration limit"
	MsgPlaylistImported     = "Processed %d songs in %.2fs (%.2fs/song, %+.2g/song from expected)"
	MsgResolverRateWait     = "Rate limited, waiting for %s"
	MsgResolverRun          = "yt-dlp %s (process=%t, download=%t)"
	MsgPlayerAwaiting       = "Guild %s waiting on head %s (%s)"
	MsgLogFile              = "Mirroring logs to %s"
	MsgAutoPlaylistRemove   = "Removing unplayable song from the autoplaylist: %s"
	MsgAutoPlaylistEmpty    = "No playable songs in the autoplaylist, disabling."
	MsgAutoPlaylistAddFail  = "Error adding song from autoplaylist: %v"

	// --- Voice ---
	MsgVoiceJoining      = "Joining channel %s in guild %s"
	MsgVoiceJoinFail     = "Failed to connect to voice in guild %s: %v"
	MsgVoiceDisconnected = "Bot disconnected by external event in guild %s"
	MsgVoiceMoved        = "Bot moved from %s to %s in guild %s"
	MsgVoiceAutoPause    = "Pausing playback in guild %s (No humans)"
	MsgVoiceAutoResume   = "Resuming playback in guild %s"
	MsgVoiceStatusFail   = "Failed to update status for %s: %v (retrying...)"
	MsgVoiceShutdown     = "Shutting down voice sessions..."

	// --- User-facing replies ---
	MsgMusicQueued          = "Enqueued **%s** to be played. Position in queue: %s"
	MsgMusicQueuedNext      = "Up next!"
	MsgMusicQueuedETA       = "%d - estimated time until playing: %s"
	MsgMusicPlaylistQueued  = "Enqueued **%d** songs to be played. Position in queue: %s"
	MsgMusicPlaylistDropped = "\n_%d songs were over the maximum duration and were dropped._"
	MsgMusicPlaylistWorking = "Gathering playlist information for %d songs%s"
	MsgMusicNowPlaying      = "Now playing in %s: **%s**"
	MsgMusicNowPlayingMent  = "%s - your song **%s** is now playing in %s!"
	MsgMusicNowPlayingProg  = "Now playing: **%s** %s"
	MsgMusicNowPlayingBy    = "Now playing: **%s** added by **%s** %s"
	MsgMusicNothingPlaying  = "There are no songs queued! Queue something with `/music play`."
	MsgMusicQueueMore       = "\n*... and %d more*"
	MsgMusicSkipped         = "Skipped **%s**."
	MsgMusicSkipAccepted    = "Your skip for **%s** was acknowledged.\nThe vote to skip has been passed.%s"
	MsgMusicSkipNext        = " Next song coming up!"
	MsgMusicSkipRemaining   = "Your skip for **%s** was acknowledged.\n**%d** more %s required to vote to skip this song."
	MsgMusicSkipPending     = "The next song was still loading, dropped it."
	MsgMusicPaused          = "Paused."
	MsgMusicResumed         = "Resumed."
	MsgMusicVolumeCurrent   = "Current volume: `%d%%`"
	MsgMusicVolumeUpdated   = "Updated volume from %d to %d"
	MsgMusicShuffled        = "Shuffled %d songs."
	MsgMusicCleared         = "Cleared %d songs from the queue."
	MsgMusicSummoned        = "Joined **%s**."
	MsgMusicDisconnected    = "Stopped and disconnected."
	MsgMusicSearching       = "Searching for videos..."
	MsgMusicSearchResults   = "**Results for** `%s`\n%s\nPick one below."
	MsgMusicSearchPicked    = "Alright, coming right up!"
	MsgMusicPlaylistDump    = "Here's the URL dump for <%s>"
	MsgMusicBlacklistAdded  = "%d users have been added to the blacklist"
	MsgMusicBlacklistRemove = "%d users have been removed from the blacklist"
	MsgMusicPresenceMulti   = "music on %d servers"

	ErrMusicGuildOnly         = "This command can only be used in a server."
	ErrMusicNotInVoice        = "You are not in a voice channel!"
	ErrMusicNotConnected      = "The bot is not in a voice channel. Use `/music summon` to summon it to your voice channel."
	ErrMusicBlacklisted       = "You are not allowed to use this bot."
	ErrMusicOwnerOnly         = "Only the bot owner can use this command."
	ErrMusicVolumeInvalid     = "`%s` is not a valid number"
	ErrMusicVolumeRange       = "Unreasonable volume provided: %d%%. Provide a value between 1 and 100."
	ErrMusicVolumeRelative    = "Unreasonable volume change provided: %d%+d -> %d%%. Provide a change between %d and %+d."
	ErrMusicSearchTooMany     = "You cannot search for more than %d videos"
	ErrMusicSearchEmpty       = "No videos found."
	ErrMusicNotPlaying        = "Can't skip! The player is not playing!"
	ErrMusicSkipLoading       = "The next song is still loading, please wait."
	ErrMusicNotYourSearch     = "Only the user who searched can pick a result."
	ErrMusicPlaylistNotFound  = "This does not seem to be a playlist."
	ErrMusicBlacklistOwner    = "The owner cannot be blacklisted."
	ErrMusicBlacklistNoTarget = "No users listed."
	ErrMusicFailed            = "Failed: %s"
)
