package proc

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/leeineian/musicbot/sys"
)

// AutoPlaylistStore holds the fallback song list.
type AutoPlaylistStore interface {
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, url string) error
}

// AutoPlaylist queues a random stored song when a session runs out of
// requests. Songs that fail to resolve are removed from the store; once the
// store is empty the feature turns itself off.
type AutoPlaylist struct {
	store    AutoPlaylistStore
	resolver MediaResolver
	pick     func(n int) int

	mu      sync.Mutex
	enabled bool
}

func NewAutoPlaylist(store AutoPlaylistStore, resolver MediaResolver, enabled bool) *AutoPlaylist {
	return &AutoPlaylist{
		store:    store,
		resolver: resolver,
		pick:     rand.IntN,
		enabled:  enabled,
	}
}

func (a *AutoPlaylist) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *AutoPlaylist) SetEnabled(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = v
}

// Refill queues one autoplaylist song if the session has nothing queued and
// nothing loaded. It returns the new entry, or nil when nothing was added.
func (a *AutoPlaylist) Refill(ctx context.Context, s *Session) (*Entry, error) {
	if !a.Enabled() || s.Playlist.Len() > 0 || s.Player.Current() != nil {
		return nil, nil
	}

	urls, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}

	for len(urls) > 0 {
		i := a.pick(len(urls))
		url := urls[i]
		urls = slices.Delete(urls, i, i+1)

		res, err := a.resolver.Resolve(ctx, url, ResolveOptions{Process: false})
		if err != nil || res == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sys.LogAutoPlaylist(sys.MsgAutoPlaylistRemove, url)
			if err := a.store.Remove(ctx, url); err != nil {
				return nil, err
			}
			continue
		}
		if res.IsExpansion() {
			sys.LogAutoPlaylist(sys.MsgAutoPlaylistAddFail, newError(UnsupportedReference, "%s is a playlist", url))
			continue
		}

		e, _ := s.Playlist.Enqueue(url, 0, 0)
		return e, nil
	}

	remaining, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		sys.LogAutoPlaylist(sys.MsgAutoPlaylistEmpty)
		a.SetEnabled(false)
	}
	return nil, nil
}

// OnFinished is a finished-playing handler that refills an emptied session.
func (a *AutoPlaylist) OnFinished(ctx context.Context, s *Session) Handler {
	return func(ev Event) error {
		if !ev.PlaylistEmpty {
			return nil
		}
		_, err := a.Refill(ctx, s)
		return err
	}
}
