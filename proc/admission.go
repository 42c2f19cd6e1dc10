package proc

import (
	"context"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
)

// Extractors whose results may be queued as a whole playlist.
var playlistExtractors = map[string]bool{
	"youtube:playlist": true,
	"youtube:tab":      true,
	"soundcloud:set":   true,
	"bandcamp:album":   true,
}

// SupportsExpansion reports whether a playlist from extractor can be queued.
func SupportsExpansion(extractor string) bool {
	return playlistExtractors[strings.ToLower(extractor)]
}

// Limits caps what one requester may queue. Zero fields are disabled.
type Limits struct {
	MaxSongsPerUser   int
	MaxSongLength     time.Duration
	MaxPlaylistLength int
}

// Limits are the session's configured caps.
func (s *Session) Limits() Limits {
	return Limits{
		MaxSongsPerUser:   s.Options.MaxSongsPerUser,
		MaxSongLength:     s.Options.MaxSongLength,
		MaxPlaylistLength: s.Options.MaxPlaylistLength,
	}
}

type SubmitOptions struct {
	Limits Limits
	// OnExpand is called before a playlist of n songs is imported.
	OnExpand func(n int)
}

// Submission is what a play request queued.
type Submission struct {
	Entries []*Entry
	// Position is the 1-based queue position of the first entry.
	Position int
	// Dropped counts playlist songs removed for exceeding MaxSongLength.
	Dropped int
	ETA     time.Duration
}

// IsPlaylist reports whether the request expanded into several entries.
func (s *Submission) IsPlaylist() bool {
	return len(s.Entries) != 1 || s.Dropped > 0
}

// Submit checks a play request against the limits and queues it. A playlist
// is queued in full, waited on, and then trimmed of songs over the length
// limit.
func (s *Session) Submit(ctx context.Context, reference string, requester, channel snowflake.ID, opts SubmitOptions) (*Submission, error) {
	lim := opts.Limits
	queued := s.Playlist.CountForRequester(requester)
	if lim.MaxSongsPerUser > 0 && queued >= lim.MaxSongsPerUser {
		return nil, newError(QuotaExceeded, "you have reached your queue limit (%d)", lim.MaxSongsPerUser)
	}

	res, err := s.resolver.Resolve(ctx, reference, ResolveOptions{Process: false})
	if err != nil {
		if KindOf(err) != 0 {
			return nil, err
		}
		return nil, wrapError(ExtractionFailed, err, "that song cannot be played")
	}
	if res == nil {
		return nil, newError(ExtractionFailed, "that song cannot be played")
	}

	if res.IsExpansion() {
		return s.submitPlaylist(ctx, res, requester, channel, queued, opts)
	}

	m := res.Media
	if lim.MaxSongLength > 0 && m.Duration > lim.MaxSongLength {
		return nil, newError(QuotaExceeded, "song duration exceeds limit (%s > %s)", m.Duration, lim.MaxSongLength)
	}

	ref := reference
	if m.URL != "" {
		ref = m.URL
	}
	e, pos := s.Playlist.Enqueue(ref, requester, channel)
	return &Submission{
		Entries:  []*Entry{e},
		Position: pos,
		ETA:      s.Playlist.EstimateWait(pos, s.Player),
	}, nil
}

func (s *Session) submitPlaylist(ctx context.Context, res *Resolution, requester, channel snowflake.ID, queued int, opts SubmitOptions) (*Submission, error) {
	lim := opts.Limits
	if !SupportsExpansion(res.Extractor) {
		return nil, newError(UnsupportedReference, "playlists from %s are not supported", res.Extractor)
	}
	n := len(res.References)
	if n == 0 {
		return nil, newError(ExtractionFailed, "that playlist is empty")
	}
	if lim.MaxPlaylistLength > 0 && n > lim.MaxPlaylistLength {
		return nil, newError(QuotaExceeded, "playlist has too many entries (%d > %d)", n, lim.MaxPlaylistLength)
	}
	if lim.MaxSongsPerUser > 0 && queued+n > lim.MaxSongsPerUser {
		return nil, newError(QuotaExceeded, "playlist entries + your already queued songs reached the limit (%d + %d > %d)", n, queued, lim.MaxSongsPerUser)
	}

	if opts.OnExpand != nil {
		opts.OnExpand(n)
	}

	start := time.Now()
	position := s.Playlist.Len() + 1
	entries := s.Playlist.EnqueueBulk(res.References, requester, channel)
	for _, e := range entries {
		if err := e.Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	dropped := s.Playlist.PurgeLongerThan(entries, lim.MaxSongLength)
	if dropped > 0 {
		sys.LogPlaylist(sys.MsgPlaylistDropped, dropped)
	}

	kept := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status() != EntryResolved {
			continue
		}
		if d, _ := e.Duration(); lim.MaxSongLength > 0 && d > lim.MaxSongLength {
			continue
		}
		kept = append(kept, e)
	}

	took := time.Since(start).Seconds()
	perSong := took / float64(n)
	sys.LogPlaylist(sys.MsgPlaylistImported, n, took, perSong, perSong-sys.ImportSecondsPerSong)

	if len(kept) == 0 {
		return nil, newError(QuotaExceeded, "no songs were added, all songs were over max duration (%s)", lim.MaxSongLength)
	}

	return &Submission{
		Entries:  kept,
		Position: position,
		Dropped:  dropped,
		ETA:      s.Playlist.EstimateWait(position, s.Player),
	}, nil
}
