package proc

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// SessionOptions are the admission and vote limits of a session. Zero limits
// are disabled.
type SessionOptions struct {
	SkipsRequired     int
	SkipRatio         float64
	MaxSongsPerUser   int
	MaxSongLength     time.Duration
	MaxPlaylistLength int
}

// SessionState is the per-session bookkeeping of the command layer.
type SessionState struct {
	mu                sync.Mutex
	nowPlayingChannel snowflake.ID
	nowPlayingMessage snowflake.ID
	autoPaused        bool
}

// NowPlaying returns the last announcement message, zero ids if none.
func (s *SessionState) NowPlaying() (channel, message snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowPlayingChannel, s.nowPlayingMessage
}

func (s *SessionState) SetNowPlaying(channel, message snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowPlayingChannel, s.nowPlayingMessage = channel, message
}

func (s *SessionState) AutoPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPaused
}

func (s *SessionState) SetAutoPaused(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoPaused = v
}

// Session is everything the bot keeps for one guild's voice connection.
type Session struct {
	Key      snowflake.ID
	Player   *Player
	Playlist *Playlist
	Skips    *SkipVoteTracker
	State    *SessionState
	Options  SessionOptions

	resolver MediaResolver

	mu        sync.Mutex
	transport VoiceTransport
}

// Transport is the voice transport the session currently streams to.
func (s *Session) Transport() VoiceTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// ReloadTransport moves playback to a new transport without events.
func (s *Session) ReloadTransport(t VoiceTransport) error {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
	return s.Player.ReloadTransport(t)
}

// TransportFactory connects a session to voice.
type TransportFactory func(ctx context.Context, key snowflake.ID) (VoiceTransport, error)

type RegistryConfig struct {
	Resolver MediaResolver
	Playlist PlaylistOptions
	Player   PlayerOptions
	Session  SessionOptions
	// Volume returns a stored per-session volume, if any.
	Volume func(ctx context.Context, key snowflake.ID) (float64, bool)
}

// Registry owns every live session, one per guild.
type Registry struct {
	cfg RegistryConfig

	mu        sync.Mutex
	sessions  map[snowflake.ID]*Session
	locks     map[snowflake.ID]*keyLock
	wire      []func(*Session)
	onDestroy []func(*Session)
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[snowflake.ID]*Session),
		locks:    make(map[snowflake.ID]*keyLock),
	}
}

// Wire registers a hook run on every new session before it is published.
func (r *Registry) Wire(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wire = append(r.wire, fn)
}

// OnDestroy registers a hook run after a session is torn down.
func (r *Registry) OnDestroy(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDestroy = append(r.onDestroy, fn)
}

// keyLock serializes work on one guild. It is dropped from the map once
// nobody holds or waits for it.
type keyLock struct {
	sync.Mutex
	refs int
}

func (r *Registry) lockKey(key snowflake.ID) (unlock func()) {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// GetOrCreate returns the session for key, building it with factory when
// missing. Concurrent calls for the same key build it once.
func (r *Registry) GetOrCreate(ctx context.Context, key snowflake.ID, factory TransportFactory) (*Session, error) {
	defer r.lockKey(key)()

	if s := r.Get(key); s != nil {
		return s, nil
	}

	transport, err := factory(ctx, key)
	if err != nil {
		return nil, err
	}

	playerOpts := r.cfg.Player
	if r.cfg.Volume != nil {
		if v, ok := r.cfg.Volume(ctx, key); ok && v > 0 && v <= 1 {
			playerOpts.Volume = v
		}
	}

	playlist := NewPlaylist(r.cfg.Resolver, r.cfg.Playlist)
	skips := NewSkipVoteTracker()
	s := &Session{
		Key:       key,
		Playlist:  playlist,
		Skips:     skips,
		State:     &SessionState{},
		Options:   r.cfg.Session,
		resolver:  r.cfg.Resolver,
		transport: transport,
	}
	s.Player = NewPlayer(key, playlist, transport, skips, playerOpts)

	r.mu.Lock()
	hooks := append([]func(*Session){}, r.wire...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(s)
	}

	r.mu.Lock()
	r.sessions[key] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) Get(key snowflake.ID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// Sessions returns a snapshot of the live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Destroy kills the player, closes the transport and forgets the session.
func (r *Registry) Destroy(ctx context.Context, key snowflake.ID) {
	defer r.lockKey(key)()

	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	hooks := append([]func(*Session){}, r.onDestroy...)
	r.mu.Unlock()
	if !ok {
		return
	}

	s.Player.Kill()
	s.Playlist.Close()
	closeTransport(ctx, s.Transport())

	for _, fn := range hooks {
		fn(s)
	}
}

// Shutdown destroys every session.
func (r *Registry) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.Sessions() {
		wg.Add(1)
		go func(key snowflake.ID) {
			defer wg.Done()
			r.Destroy(ctx, key)
		}(s.Key)
	}
	wg.Wait()
}

func closeTransport(ctx context.Context, t VoiceTransport) {
	switch c := t.(type) {
	case interface{ Close(context.Context) error }:
		_ = c.Close(ctx)
	case io.Closer:
		_ = c.Close()
	}
}
