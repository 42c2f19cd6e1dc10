package proc

import (
	"context"
	"errors"
	"iter"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
)

// PlaylistOptions tunes background resolution and wait estimates.
type PlaylistOptions struct {
	// ResolveConcurrency bounds in-flight resolutions of a bulk enqueue.
	ResolveConcurrency int
	ResolveTimeout     time.Duration
	// FallbackDuration stands in for entries whose length is not known yet.
	FallbackDuration time.Duration
	Download         bool
}

func DefaultPlaylistOptions() PlaylistOptions {
	return PlaylistOptions{
		ResolveConcurrency: 1,
		ResolveTimeout:     60 * time.Second,
		FallbackDuration:   3 * time.Minute,
	}
}

// PlaybackClock reports how long the current song still has to play.
type PlaybackClock interface {
	Remaining() (time.Duration, bool)
}

// Playlist is the ordered queue of a session. Entries are resolved in the
// background as soon as they are added.
type Playlist struct {
	resolver MediaResolver
	opts     PlaylistOptions
	sem      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries []*Entry
	seq     uint64
	onAdded []func(*Entry)
}

func NewPlaylist(resolver MediaResolver, opts PlaylistOptions) *Playlist {
	if opts.ResolveConcurrency < 1 {
		opts.ResolveConcurrency = 1
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultPlaylistOptions().ResolveTimeout
	}
	if opts.FallbackDuration <= 0 {
		opts.FallbackDuration = DefaultPlaylistOptions().FallbackDuration
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Playlist{
		resolver: resolver,
		opts:     opts,
		sem:      make(chan struct{}, opts.ResolveConcurrency),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnEntryAdded registers a callback run after every insertion.
func (p *Playlist) OnEntryAdded(fn func(*Entry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAdded = append(p.onAdded, fn)
}

// Enqueue appends a pending entry and starts resolving it. It returns the
// entry and its 1-based position.
func (p *Playlist) Enqueue(reference string, requester, channel snowflake.ID) (*Entry, int) {
	p.mu.Lock()
	e := p.appendLocked(reference, requester, channel)
	pos := len(p.entries)
	hooks := slices.Clone(p.onAdded)
	p.mu.Unlock()

	go p.resolve(e)
	for _, fn := range hooks {
		fn(e)
	}
	return e, pos
}

// EnqueueBulk appends all references in order. Resolutions start in queue
// order, at most ResolveConcurrency at a time.
func (p *Playlist) EnqueueBulk(references []string, requester, channel snowflake.ID) []*Entry {
	if len(references) == 0 {
		return nil
	}
	p.mu.Lock()
	added := make([]*Entry, 0, len(references))
	for _, ref := range references {
		added = append(added, p.appendLocked(ref, requester, channel))
	}
	hooks := slices.Clone(p.onAdded)
	p.mu.Unlock()

	go func() {
		for _, e := range added {
			select {
			case p.sem <- struct{}{}:
			case <-p.ctx.Done():
				return
			}
			if e.ctx.Err() != nil {
				// Cleared or purged while waiting for a slot.
				<-p.sem
				continue
			}
			go func() {
				defer func() { <-p.sem }()
				p.resolve(e)
			}()
		}
	}()

	for _, e := range added {
		for _, fn := range hooks {
			fn(e)
		}
	}
	return added
}

func (p *Playlist) appendLocked(reference string, requester, channel snowflake.ID) *Entry {
	p.seq++
	e := newEntry(p.ctx, p.seq, reference, requester, channel)
	p.entries = append(p.entries, e)
	return e
}

func (p *Playlist) resolve(e *Entry) {
	e.started.Store(true)
	defer e.cancel()

	ctx, cancel := context.WithTimeout(e.ctx, p.opts.ResolveTimeout)
	defer cancel()

	res, err := p.resolver.Resolve(ctx, e.Reference, ResolveOptions{Download: p.opts.Download, Process: true})
	switch {
	case err == nil && res != nil && res.Media != nil:
		e.markResolved(res.Media)
		return
	case err == nil:
		err = newError(UnsupportedReference, "%s is a playlist, not a song", e.Reference)
	case errors.Is(err, context.DeadlineExceeded):
		err = wrapError(ExtractionFailed, err, "resolving %s timed out", e.Reference)
	case KindOf(err) == 0:
		err = wrapError(ExtractionFailed, err, "could not resolve %s", e.Reference)
	}

	if e.markFailed(err) {
		p.Remove(e)
		sys.LogPlaylist(sys.MsgPlaylistResolveFail, e.Reference, err)
	}
}

// Peek returns the head without removing it.
func (p *Playlist) Peek() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return nil
	}
	return p.entries[0]
}

func (p *Playlist) PopHead() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return nil
	}
	e := p.entries[0]
	p.entries[0] = nil
	p.entries = p.entries[1:]
	return e
}

// pushFront puts a popped entry back at the head.
func (p *Playlist) pushFront(e *Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.entries, e) {
		return
	}
	p.entries = slices.Insert(p.entries, 0, e)
}

// Remove deletes the entry by identity. It reports false when the entry is no
// longer queued.
func (p *Playlist) Remove(e *Entry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.entries, e)
	if i < 0 {
		return false
	}
	p.entries = slices.Delete(p.entries, i, i+1)
	return true
}

func (p *Playlist) CountForRequester(id snowflake.ID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if e.Requester == id {
			n++
		}
	}
	return n
}

// EstimateWait is the time until the entry at the 1-based position starts:
// what is left of the current song plus every entry queued before it.
func (p *Playlist) EstimateWait(position int, clock PlaybackClock) time.Duration {
	var total time.Duration
	if clock != nil {
		if rem, ok := clock.Remaining(); ok {
			total += rem
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if i >= position-1 {
			break
		}
		total += p.durationOf(e)
	}
	return total
}

func (p *Playlist) durationOf(e *Entry) time.Duration {
	if d, ok := e.Duration(); ok && d > 0 {
		return d
	}
	return p.opts.FallbackDuration
}

// Clear empties the playlist and returns how many entries were dropped.
// In-flight resolutions keep running and their results are discarded; those
// not started yet are abandoned.
func (p *Playlist) Clear() int {
	p.mu.Lock()
	dropped := p.entries
	p.entries = nil
	p.mu.Unlock()

	for _, e := range dropped {
		if !e.started.Load() {
			e.Cancel()
		}
	}
	return len(dropped)
}

// Entries yields a snapshot taken when iteration starts.
func (p *Playlist) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		p.mu.Lock()
		snapshot := slices.Clone(p.entries)
		p.mu.Unlock()
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Playlist) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	rand.Shuffle(len(p.entries), func(i, j int) {
		p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
	})
}

// PurgeLongerThan removes those of the given entries that are still queued
// and resolved to something longer than max. Entries the player already took
// are left alone.
func (p *Playlist) PurgeLongerThan(entries []*Entry, max time.Duration) int {
	if max <= 0 {
		return 0
	}
	dropped := 0
	for _, e := range entries {
		if d, ok := e.Duration(); ok && d > max && p.Remove(e) {
			e.Cancel()
			dropped++
		}
	}
	return dropped
}

// Close cancels every in-flight resolution. The playlist is unusable after.
func (p *Playlist) Close() {
	p.cancel()
	p.Clear()
}
