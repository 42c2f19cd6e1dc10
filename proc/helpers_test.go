package proc

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

type fakeItem struct {
	media     *Media
	refs      []string
	extractor string
	err       error
	gate      chan struct{}
}

// fakeResolver answers from a fixed table. Unknown references fail.
type fakeResolver struct {
	mu    sync.Mutex
	items map[string]fakeItem
	calls []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{items: make(map[string]fakeItem)}
}

func (r *fakeResolver) song(ref string, d time.Duration) *fakeResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ref] = fakeItem{media: &Media{Title: "title " + ref, URL: ref, StreamURL: "stream://" + ref, Duration: d}}
	return r
}

func (r *fakeResolver) gated(ref string, d time.Duration) chan struct{} {
	gate := make(chan struct{})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ref] = fakeItem{media: &Media{Title: "title " + ref, URL: ref, Duration: d}, gate: gate}
	return gate
}

func (r *fakeResolver) playlist(ref, extractor string, refs ...string) *fakeResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ref] = fakeItem{refs: refs, extractor: extractor}
	return r
}

func (r *fakeResolver) failing(ref string) *fakeResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ref] = fakeItem{err: errors.New("video unavailable")}
	return r
}

func (r *fakeResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *fakeResolver) Resolve(ctx context.Context, ref string, opts ResolveOptions) (*Resolution, error) {
	r.mu.Lock()
	it, ok := r.items[ref]
	if opts.Process {
		r.calls = append(r.calls, ref)
	}
	r.mu.Unlock()

	if !ok {
		return nil, errors.New("unsupported url")
	}
	if it.gate != nil && opts.Process {
		select {
		case <-it.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if it.err != nil {
		return nil, it.err
	}
	if it.refs != nil {
		return &Resolution{References: it.refs, Extractor: it.extractor}, nil
	}
	m := *it.media
	return &Resolution{Media: &m, Extractor: "youtube"}, nil
}

type fakeStream struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	paused bool
	volume float64
}

func newFakeStream(volume float64) *fakeStream {
	return &fakeStream{done: make(chan struct{}), volume: volume}
}

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *fakeStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *fakeStream) Stop() { s.end(nil) }

// end finishes the stream as if the song ran out (err nil) or dropped.
func (s *fakeStream) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeStream) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *fakeStream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *fakeStream) Done() <-chan struct{} { return s.done }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type fakeTransport struct {
	mu      sync.Mutex
	fail    int
	opened  []*fakeStream
	media   []*Media
	closed  bool
	attempt int
}

func (t *fakeTransport) Stream(ctx context.Context, m *Media, volume float64) (Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempt++
	if t.fail < 0 || t.attempt <= t.fail {
		return nil, errors.New("voice websocket closed")
	}
	s := newFakeStream(volume)
	t.opened = append(t.opened, s)
	t.media = append(t.media, m)
	return s, nil
}

func (t *fakeTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) last() *fakeStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.opened) == 0 {
		return nil
	}
	return t.opened[len(t.opened)-1]
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opened)
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// recorder collects events of a player.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(p *Player, kinds ...EventKind) *recorder {
	r := &recorder{}
	for _, k := range kinds {
		p.Subscribe(k, func(ev Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
			return nil
		})
	}
	return r
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *recorder) played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == EventPlay {
			out = append(out, ev.Entry.Reference)
		}
	}
	return out
}

type memStore struct {
	mu   sync.Mutex
	urls []string
}

func (s *memStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.urls), nil
}

func (s *memStore) Remove(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = slices.DeleteFunc(s.urls, func(u string) bool { return u == url })
	return nil
}

type fixedClock struct {
	rem time.Duration
	ok  bool
}

func (c fixedClock) Remaining() (time.Duration, bool) { return c.rem, c.ok }

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond
