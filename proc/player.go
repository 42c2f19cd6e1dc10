package proc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
)

// State represents the playback state machine.
//
//	Stopped --Play--> Playing --Pause--> Paused --Resume--> Playing
//	Playing/Paused --Skip/Stop/end of song--> Stopped (then auto-advance)
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a song is loaded (Playing or Paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}

func (s State) CanPause() bool {
	return s == StatePlaying
}

func (s State) CanResume() bool {
	return s == StatePaused
}

// Stream is one song being sent to a voice connection.
type Stream interface {
	Pause() error
	Resume() error
	// Stop ends the stream and closes Done. Safe to call more than once.
	Stop()
	SetVolume(v float64)
	// Done is closed when the stream ends for any reason.
	Done() <-chan struct{}
	// Err is nil when the song played to the end or was stopped.
	Err() error
}

// VoiceTransport opens streams on a voice connection. The stream lives until
// it ends, is stopped, or ctx is cancelled.
type VoiceTransport interface {
	Stream(ctx context.Context, media *Media, volume float64) (Stream, error)
}

type PlayerOptions struct {
	Volume           float64
	TransportRetries int
	TransportBackoff time.Duration
}

func DefaultPlayerOptions() PlayerOptions {
	return PlayerOptions{
		Volume:           0.15,
		TransportRetries: 3,
		TransportBackoff: 500 * time.Millisecond,
	}
}

// Player drives one session: it pulls entries off the playlist, streams them
// and reports what happens through events.
type Player struct {
	key      snowflake.ID
	playlist *Playlist
	skips    *SkipVoteTracker
	bus      *eventBus
	opts     PlayerOptions
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	transport VoiceTransport
	state     State
	current   *Entry
	stream    Stream
	volume    float64
	gen       uint64
	advancing bool
	rerun     bool
	awaiting  *Entry
	killed    bool
	startedAt time.Time
	elapsed   time.Duration
}

func NewPlayer(key snowflake.ID, playlist *Playlist, transport VoiceTransport, skips *SkipVoteTracker, opts PlayerOptions) *Player {
	def := DefaultPlayerOptions()
	if opts.Volume <= 0 || opts.Volume > 1 {
		opts.Volume = def.Volume
	}
	if opts.TransportRetries < 1 {
		opts.TransportRetries = def.TransportRetries
	}
	if opts.TransportBackoff < 0 {
		opts.TransportBackoff = def.TransportBackoff
	}
	if skips == nil {
		skips = NewSkipVoteTracker()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		key:       key,
		playlist:  playlist,
		skips:     skips,
		bus:       &eventBus{key: key},
		opts:      opts,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		volume:    opts.Volume,
	}
	playlist.OnEntryAdded(func(e *Entry) {
		p.emit(Event{Kind: EventEntryAdded, Entry: e})
	})
	return p
}

// Subscribe adds a handler for one event kind. Handlers run in registration
// order.
func (p *Player) Subscribe(kind EventKind, h Handler) {
	p.bus.subscribe(kind, h)
}

func (p *Player) emit(ev Event) {
	p.mu.Lock()
	killed := p.killed
	p.mu.Unlock()
	if killed {
		return
	}
	p.bus.emit(ev)
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current is the loaded entry, nil when Stopped.
func (p *Player) Current() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Pending is the head Play is waiting on, nil when nothing is loading.
func (p *Player) Pending() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awaiting
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Playlist() *Playlist { return p.playlist }

func (p *Player) Skips() *SkipVoteTracker { return p.skips }

// Progress is how long the current song has played, pauses excluded.
func (p *Player) Progress() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressLocked()
}

func (p *Player) progressLocked() time.Duration {
	switch p.state {
	case StatePlaying:
		return p.elapsed + p.now().Sub(p.startedAt)
	case StatePaused:
		return p.elapsed
	default:
		return 0
	}
}

// Remaining implements PlaybackClock. It reports false when nothing is
// loaded; songs of unknown length count as finished.
func (p *Player) Remaining() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0, false
	}
	d, _ := p.current.Duration()
	rem := d - p.progressLocked()
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

// Play starts the next song. It waits for the head entry to resolve, skipping
// entries that fail, and emits idle once if the playlist runs dry. A Play that
// arrives while another is still advancing makes that one look at the
// playlist again before it gives up.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return newError(InvalidStateTransition, "player is closed")
	}
	if p.state != StateStopped {
		st := p.state
		p.mu.Unlock()
		return newError(InvalidStateTransition, "cannot play while %s", st)
	}
	if p.advancing {
		p.rerun = true
		p.mu.Unlock()
		return nil
	}
	p.advancing = true
	p.mu.Unlock()

	settled := false
	defer func() {
		if !settled {
			p.settle(false)
		}
	}()

	for {
		e := p.playlist.PopHead()
		if e == nil {
			if p.takeRerun() {
				continue
			}
			sys.LogPlayer(sys.MsgPlayerIdle, p.key)
			p.emit(Event{Kind: EventIdle})
			if p.settle(true) {
				settled = true
				return nil
			}
			continue
		}

		p.mu.Lock()
		if p.killed {
			p.mu.Unlock()
			return nil
		}
		p.awaiting = e
		p.mu.Unlock()
		sys.LogDebug(sys.MsgPlayerAwaiting, p.key, e.Reference, e.Status())

		var err error
		select {
		case <-e.Done():
			err = e.Err()
		case <-ctx.Done():
			// The head keeps its place for the next Play.
			if e.Status() != EntryFailed {
				p.playlist.pushFront(e)
			}
			return ctx.Err()
		case <-p.ctx.Done():
			return nil
		}

		p.mu.Lock()
		p.awaiting = nil
		p.mu.Unlock()

		if err != nil {
			sys.LogPlayer(sys.MsgPlayerSkipPending, p.key, e.Reference)
			continue
		}

		media, _ := e.Media()
		stream, err := p.open(media)
		if err != nil {
			if errors.Is(err, context.Canceled) && p.ctx.Err() != nil {
				return nil
			}
			p.failTransport(e, err)
			return err
		}

		p.mu.Lock()
		if p.killed {
			p.mu.Unlock()
			stream.Stop()
			return nil
		}
		p.gen++
		gen := p.gen
		p.state, p.current, p.stream = StatePlaying, e, stream
		p.elapsed, p.startedAt = 0, p.now()
		p.mu.Unlock()

		p.skips.Reset()
		sys.LogPlayer(sys.MsgPlayerStarted, p.key, e.Title())
		p.emit(Event{Kind: EventPlay, Entry: e})
		go p.watch(stream, gen, e)
		return nil
	}
}

// takeRerun consumes a Play request that arrived during the current run.
func (p *Player) takeRerun() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rerun || p.killed {
		return false
	}
	p.rerun = false
	return true
}

// settle ends an advance run. After an idle run it reports false instead when
// another Play came in meanwhile, and the run goes on.
func (p *Player) settle(idle bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idle && p.rerun && !p.killed {
		p.rerun = false
		return false
	}
	p.advancing, p.rerun, p.awaiting = false, false, nil
	return true
}

// open tries the transport up to TransportRetries times.
func (p *Player) open(media *Media) (Stream, error) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.TransportRetries; attempt++ {
		p.mu.Lock()
		transport, volume := p.transport, p.volume
		p.mu.Unlock()

		if transport == nil {
			lastErr = errors.New("no voice transport")
		} else {
			s, err := transport.Stream(p.ctx, media, volume)
			if err == nil {
				return s, nil
			}
			lastErr = err
		}

		if attempt == p.opts.TransportRetries {
			break
		}
		sys.LogPlayer(sys.MsgPlayerTransportRetry, p.key, attempt, p.opts.TransportRetries, lastErr)
		select {
		case <-time.After(p.opts.TransportBackoff * time.Duration(attempt)):
		case <-p.ctx.Done():
			return nil, p.ctx.Err()
		}
	}
	return nil, wrapError(TransportError, lastErr, "voice transport failed after %d attempts", p.opts.TransportRetries)
}

// failTransport forces the player to Stopped and drops the entry. There is no
// auto-advance after a transport failure.
func (p *Player) failTransport(e *Entry, err error) {
	p.mu.Lock()
	p.gen++
	p.state, p.current, p.stream = StateStopped, nil, nil
	p.mu.Unlock()

	sys.LogError(sys.MsgPlayerTransportFatal, p.key, err)
	p.emit(Event{Kind: EventError, Entry: e, Err: err})
}

// watch waits for the stream to end. Streams replaced or stopped through the
// player are ignored via the generation counter.
func (p *Player) watch(s Stream, gen uint64, e *Entry) {
	<-s.Done()

	p.mu.Lock()
	if p.gen != gen || p.killed {
		p.mu.Unlock()
		return
	}
	paused := p.state == StatePaused
	p.mu.Unlock()

	if err := s.Err(); err != nil {
		p.recover(e, gen, paused, err)
		return
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.gen++
	p.state, p.current, p.stream = StateStopped, nil, nil
	p.mu.Unlock()

	sys.LogPlayer(sys.MsgPlayerFinished, p.key, e.Title())
	p.finish(e, false)
}

// recover reopens a dropped stream. The song restarts from the beginning.
func (p *Player) recover(e *Entry, gen uint64, paused bool, cause error) {
	sys.LogPlayer(sys.MsgPlayerStreamDropped, p.key, cause)
	media, _ := e.Media()
	s, err := p.open(media)
	if err != nil {
		p.mu.Lock()
		stale := p.gen != gen
		p.mu.Unlock()
		if !stale && p.ctx.Err() == nil {
			p.failTransport(e, err)
		}
		return
	}
	if paused {
		_ = s.Pause()
	}

	p.mu.Lock()
	if p.gen != gen || p.killed {
		p.mu.Unlock()
		s.Stop()
		return
	}
	p.gen++
	next := p.gen
	p.stream = s
	p.elapsed, p.startedAt = 0, p.now()
	p.mu.Unlock()

	go p.watch(s, next, e)
}

// finish emits the end-of-song events and advances to the next entry.
func (p *Player) finish(e *Entry, stopped bool) {
	if stopped {
		p.emit(Event{Kind: EventStop, Entry: e})
	}
	p.emit(Event{Kind: EventFinishedPlaying, Entry: e, PlaylistEmpty: p.playlist.Len() == 0})

	if err := p.Play(p.ctx); err != nil && !IsKind(err, InvalidStateTransition) && !errors.Is(err, context.Canceled) {
		sys.LogWarn(sys.MsgGenericError, err)
	}
}

func (p *Player) Pause() error {
	p.mu.Lock()
	if !p.state.CanPause() {
		st := p.state
		p.mu.Unlock()
		return newError(InvalidStateTransition, "cannot pause while %s", st)
	}
	if err := p.stream.Pause(); err != nil {
		p.mu.Unlock()
		return wrapError(TransportError, err, "pause failed")
	}
	p.elapsed += p.now().Sub(p.startedAt)
	p.state = StatePaused
	e := p.current
	p.mu.Unlock()

	p.emit(Event{Kind: EventPause, Entry: e})
	return nil
}

func (p *Player) Resume() error {
	p.mu.Lock()
	if !p.state.CanResume() {
		st := p.state
		p.mu.Unlock()
		return newError(InvalidStateTransition, "cannot resume while %s", st)
	}
	if err := p.stream.Resume(); err != nil {
		p.mu.Unlock()
		return wrapError(TransportError, err, "resume failed")
	}
	p.startedAt = p.now()
	p.state = StatePlaying
	e := p.current
	p.mu.Unlock()

	p.emit(Event{Kind: EventResume, Entry: e})
	return nil
}

// Skip ends the current song and advances. While the player is still waiting
// for the head to resolve, Skip drops that head instead.
func (p *Player) Skip() error {
	return p.end(false)
}

// Stop ends the current song like Skip but emits stop first.
func (p *Player) Stop() error {
	return p.end(true)
}

func (p *Player) end(stopped bool) error {
	p.mu.Lock()
	if !p.state.IsActive() {
		pending := p.awaiting
		st := p.state
		p.mu.Unlock()
		if pending != nil && !stopped {
			sys.LogPlayer(sys.MsgPlayerSkipPending, p.key, pending.Reference)
			pending.Cancel()
			return nil
		}
		return newError(InvalidStateTransition, "cannot skip while %s", st)
	}
	p.gen++
	e, s := p.current, p.stream
	p.state, p.current, p.stream = StateStopped, nil, nil
	p.mu.Unlock()

	s.Stop()
	go p.finish(e, stopped)
	return nil
}

// SetVolume changes the volume of the session and of the live stream.
func (p *Player) SetVolume(v float64) error {
	if v <= 0 || v > 1 {
		return newError(InvalidArgument, "volume must be in (0, 1], got %v", v)
	}
	p.mu.Lock()
	p.volume = v
	s := p.stream
	p.mu.Unlock()
	if s != nil {
		s.SetVolume(v)
	}
	return nil
}

// ReloadTransport swaps the voice transport. A loaded song is reopened on the
// new transport, paused if it was paused. No events are emitted.
func (p *Player) ReloadTransport(t VoiceTransport) error {
	p.mu.Lock()
	p.transport = t
	if !p.state.IsActive() || p.killed {
		p.mu.Unlock()
		return nil
	}
	p.gen++
	gen := p.gen
	e, old := p.current, p.stream
	paused := p.state == StatePaused
	p.mu.Unlock()

	old.Stop()

	media, _ := e.Media()
	s, err := p.open(media)
	if err != nil {
		p.mu.Lock()
		stale := p.gen != gen
		p.mu.Unlock()
		if !stale {
			p.failTransport(e, err)
		}
		return err
	}
	if paused {
		_ = s.Pause()
	}

	p.mu.Lock()
	if p.gen != gen || p.killed {
		p.mu.Unlock()
		s.Stop()
		return nil
	}
	p.stream = s
	p.elapsed, p.startedAt = 0, p.now()
	p.mu.Unlock()

	go p.watch(s, gen, e)
	return nil
}

// Kill tears the player down: pending waits and the stream are cancelled and
// no further events fire.
func (p *Player) Kill() {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return
	}
	p.killed = true
	p.gen++
	s := p.stream
	p.state, p.current, p.stream = StateStopped, nil, nil
	p.mu.Unlock()

	p.cancel()
	if s != nil {
		s.Stop()
	}
}
