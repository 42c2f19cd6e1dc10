package proc

import (
	"context"
	"time"
)

// Media is a resolved, playable song.
type Media struct {
	Title    string
	URL      string // page URL shown to users
	Uploader string
	Duration time.Duration // zero when unknown (live streams)
	// Exactly one of StreamURL and Path is set: a remote audio URL or a
	// downloaded file.
	StreamURL string
	Path      string
}

// Source is what the transport should open.
func (m *Media) Source() string {
	if m.Path != "" {
		return m.Path
	}
	return m.StreamURL
}

// Resolution is the outcome of resolving a reference: either a single Media
// or an expansion into more references.
type Resolution struct {
	Media      *Media
	References []string
	Extractor  string
}

// IsExpansion reports whether the reference pointed at a playlist or album.
func (r *Resolution) IsExpansion() bool {
	return r.Media == nil
}

type ResolveOptions struct {
	// Download fetches the audio to local storage instead of returning a
	// stream URL.
	Download bool
	// Process runs full extraction. When false a playlist is returned as a
	// flat list of references without touching each item.
	Process bool
}

// MediaResolver turns a URL or search term into playable media.
type MediaResolver interface {
	Resolve(ctx context.Context, reference string, opts ResolveOptions) (*Resolution, error)
}

// SearchResult is one hit of a free-text search.
type SearchResult struct {
	Title    string
	Uploader string
	URL      string
	Duration time.Duration
}

// Searcher lists candidates for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
