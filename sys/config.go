package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// --- Phase 1: Environment ---

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []snowflake.ID
	Silent       bool
	OptionsPath  string
	Music        MusicOptions
}

// MusicOptions mirrors config/options.toml. Durations are written as strings
// ("60s", "3m"), role ids as quoted snowflakes.
type MusicOptions struct {
	DefaultVolume      float64       `koanf:"default_volume"`
	SkipsRequired      int           `koanf:"skips_required"`
	SkipRatio          float64       `koanf:"skip_ratio"`
	MaxSongsPerUser    int           `koanf:"max_songs_per_user"`
	MaxSongLength      int           `koanf:"max_song_length"` // seconds, 0 disables
	MaxPlaylistLength  int           `koanf:"max_playlist_length"`
	UseAutoPlaylist    bool          `koanf:"use_auto_playlist"`
	AutoPlaylistFile   string        `koanf:"auto_playlist_file"`
	AutoPause          bool          `koanf:"auto_pause"`
	NowPlayingMentions bool          `koanf:"now_playing_mentions"`
	ResolveConcurrency int           `koanf:"resolve_concurrency"`
	ResolveTimeout     time.Duration `koanf:"resolve_timeout"`
	FallbackDuration   time.Duration `koanf:"fallback_duration"`
	InstaskipRoles     []string      `koanf:"instaskip_role_ids"`
	DownloadAudio      bool          `koanf:"download_audio"`
	AudioCacheDir      string        `koanf:"audio_cache_dir"`
	YoutubePrefix      string        `koanf:"youtube_prefix"`
	YTMusicPrefix      string        `koanf:"ytmusic_prefix"`
}

// ImportSecondsPerSong is the per-entry ETA shown while a playlist is imported.
const ImportSecondsPerSong = 1.2

var GlobalConfig *Config

func DefaultMusicOptions() MusicOptions {
	return MusicOptions{
		DefaultVolume:      0.15,
		SkipsRequired:      4,
		SkipRatio:          0.5,
		UseAutoPlaylist:    true,
		AutoPlaylistFile:   "config/autoplaylist.txt",
		AutoPause:          true,
		ResolveConcurrency: 1,
		ResolveTimeout:     60 * time.Second,
		FallbackDuration:   3 * time.Minute,
		AudioCacheDir:      ".tracks",
		YoutubePrefix:      "[YT]",
		YTMusicPrefix:      "[YTM]",
	}
}

// LoadConfig initializes the configuration from environment variables and the
// optional music options file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	optsPath := os.Getenv("MUSIC_OPTIONS")
	if optsPath == "" {
		optsPath = filepath.Join("config", "options.toml")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	ownerIDs, err := parseIDList(os.Getenv("OWNER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid OWNER_IDS: %w", err)
	}

	music, err := LoadMusicOptions(optsPath)
	if err != nil {
		return nil, fmt.Errorf(MsgConfigOptionsError, optsPath, err)
	}

	cfg := &Config{
		Token:        os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),
		DatabasePath: dbPath,
		OwnerIDs:     ownerIDs,
		Silent:       silent,
		OptionsPath:  optsPath,
		Music:        music,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

// LoadMusicOptions reads the TOML options file on top of the defaults. A
// missing file leaves the defaults untouched.
func LoadMusicOptions(path string) (MusicOptions, error) {
	opts := DefaultMusicOptions()
	if _, err := os.Stat(path); err != nil {
		return opts, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return opts, err
	}
	if err := k.UnmarshalWithConf("", &opts, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	return c.Music.Validate()
}

func (m MusicOptions) Validate() error {
	if m.DefaultVolume <= 0 || m.DefaultVolume > 1 {
		return fmt.Errorf("default_volume must be in (0, 1], got %v", m.DefaultVolume)
	}
	if m.SkipRatio < 0 || m.SkipRatio > 1 {
		return fmt.Errorf("skip_ratio must be in [0, 1], got %v", m.SkipRatio)
	}
	if m.SkipsRequired < 0 || m.MaxSongsPerUser < 0 || m.MaxSongLength < 0 || m.MaxPlaylistLength < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if m.ResolveConcurrency < 1 {
		return fmt.Errorf("resolve_concurrency must be at least 1, got %d", m.ResolveConcurrency)
	}
	if m.ResolveTimeout <= 0 || m.FallbackDuration <= 0 {
		return fmt.Errorf("resolve_timeout and fallback_duration must be positive")
	}
	return nil
}

// MaxSongDuration is MaxSongLength as a duration, zero when the limit is off.
func (m MusicOptions) MaxSongDuration() time.Duration {
	return time.Duration(m.MaxSongLength) * time.Second
}

// InstaskipRoleIDs returns the parsed role ids; malformed ids are skipped.
func (m MusicOptions) InstaskipRoleIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(m.InstaskipRoles))
	for _, raw := range m.InstaskipRoles {
		if id, err := snowflake.Parse(strings.TrimSpace(raw)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsOwner reports whether the user is one of the configured bot owners.
func (c *Config) IsOwner(userID snowflake.ID) bool {
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseIDList(raw string) ([]snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []snowflake.ID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
