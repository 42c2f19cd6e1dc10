package sys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMusicOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	body := `
default_volume = 0.3
skips_required = 2
max_song_length = 600
resolve_timeout = "30s"
fallback_duration = "4m"
instaskip_role_ids = ["123456789012345678", "bogus"]
use_auto_playlist = false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	opts, err := LoadMusicOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, opts.DefaultVolume)
	assert.Equal(t, 2, opts.SkipsRequired)
	assert.Equal(t, 10*time.Minute, opts.MaxSongDuration())
	assert.Equal(t, 30*time.Second, opts.ResolveTimeout)
	assert.Equal(t, 4*time.Minute, opts.FallbackDuration)
	assert.False(t, opts.UseAutoPlaylist)
	assert.Equal(t, []snowflake.ID{123456789012345678}, opts.InstaskipRoleIDs())

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultMusicOptions().SkipRatio, opts.SkipRatio)
	assert.Equal(t, 1, opts.ResolveConcurrency)
}

func TestLoadMusicOptionsMissingFile(t *testing.T) {
	opts, err := LoadMusicOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMusicOptions(), opts)
}

func TestMusicOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MusicOptions)
		wantErr bool
	}{
		{"defaults", func(*MusicOptions) {}, false},
		{"zero volume", func(m *MusicOptions) { m.DefaultVolume = 0 }, true},
		{"loud volume", func(m *MusicOptions) { m.DefaultVolume = 1.5 }, true},
		{"ratio above one", func(m *MusicOptions) { m.SkipRatio = 2 }, true},
		{"negative limit", func(m *MusicOptions) { m.MaxSongsPerUser = -1 }, true},
		{"no concurrency", func(m *MusicOptions) { m.ResolveConcurrency = 0 }, true},
		{"no timeout", func(m *MusicOptions) { m.ResolveTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMusicOptions()
			tt.mutate(&m)
			if tt.wantErr {
				assert.Error(t, m.Validate())
			} else {
				assert.NoError(t, m.Validate())
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Music: DefaultMusicOptions()}
	assert.Error(t, cfg.Validate())

	cfg.Token = "token"
	assert.NoError(t, cfg.Validate())

	cfg.GuildID = "123"
	assert.Error(t, cfg.Validate())
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList(" 1 , 2,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, ids)

	ids, err = parseIDList("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = parseIDList("1,abc")
	assert.Error(t, err)

	cfg := &Config{OwnerIDs: []snowflake.ID{7}}
	assert.True(t, cfg.IsOwner(7))
	assert.False(t, cfg.IsOwner(8))
}
