package proc

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
)

const maxVoiceStatus = 128

// DiscordTransport streams opus frames to one guild's voice connection and
// owns the channel's voice status.
type DiscordTransport struct {
	client  *bot.Client
	guildID snowflake.ID
	conn    voice.Conn

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	channelID snowflake.ID
	current   *discordStream

	statusChan chan string
	statusMu   sync.Mutex
	lastStatus string
	wg         sync.WaitGroup
}

// JoinVoice connects to channelID and returns a transport for it.
func JoinVoice(ctx context.Context, client *bot.Client, guildID, channelID snowflake.ID) (*DiscordTransport, error) {
	sys.LogVoice(sys.MsgVoiceJoining, channelID, guildID)
	conn := client.VoiceManager.CreateConn(guildID)
	if err := conn.Open(ctx, channelID, false, false); err != nil {
		sys.LogVoice(sys.MsgVoiceJoinFail, guildID, err)
		conn.Close(ctx)
		return nil, wrapError(TransportError, err, "could not join voice channel")
	}

	tctx, cancel := context.WithCancel(context.Background())
	t := &DiscordTransport{
		client:     client,
		guildID:    guildID,
		conn:       conn,
		ctx:        tctx,
		cancel:     cancel,
		channelID:  channelID,
		statusChan: make(chan string, 10),
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.statusManager()
	}()
	return t, nil
}

func (t *DiscordTransport) Channel() snowflake.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

// Moved records that the bot was moved to another channel and carries the
// voice status along.
func (t *DiscordTransport) Moved(channelID snowflake.ID) {
	t.mu.Lock()
	old := t.channelID
	t.channelID = channelID
	t.mu.Unlock()
	if old == channelID {
		return
	}
	sys.LogVoice(sys.MsgVoiceMoved, old, channelID, t.guildID)
	if old != 0 {
		t.putStatus(old, "")
	}
	t.statusMu.Lock()
	status := t.lastStatus
	t.statusMu.Unlock()
	t.SetStatus(status)
}

// Stream opens media and starts feeding it to the connection. Any stream
// that was still attached is stopped.
func (t *DiscordTransport) Stream(ctx context.Context, media *Media, volume float64) (Stream, error) {
	if t.ctx.Err() != nil {
		return nil, errors.New("voice transport closed")
	}
	if media == nil {
		return nil, errors.New("nothing to stream")
	}
	input := media.Source()
	if input == "" {
		return nil, errors.New("media has no playable source")
	}

	sctx, cancel := context.WithCancel(ctx)
	s := newDiscordStream(cancel, volume)
	tc := newTranscoder(&s.volume)
	if err := tc.open(input); err != nil {
		tc.close()
		cancel()
		return nil, err
	}

	t.mu.Lock()
	prev := t.current
	t.current = s
	t.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	go func() {
		defer tc.close()
		err := tc.run(sctx, s.push)
		if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) {
			err = nil
		}
		s.producerDone(err)
	}()
	go func() {
		<-s.Done()
		t.detach(s)
	}()

	t.setOpusFrameProviderSafe(s)
	t.conn.SetSpeaking(t.ctx, voice.SpeakingFlagMicrophone)
	return s, nil
}

func (t *DiscordTransport) detach(s *discordStream) {
	t.mu.Lock()
	if t.current != s {
		t.mu.Unlock()
		return
	}
	t.current = nil
	t.mu.Unlock()
	t.setOpusFrameProviderSafe(nil)
	if t.ctx.Err() == nil {
		t.conn.SetSpeaking(t.ctx, 0)
	}
}

func (t *DiscordTransport) setOpusFrameProviderSafe(provider voice.OpusFrameProvider) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogVoice("Recovered from panic in SetOpusFrameProvider: %v", r)
		}
	}()
	t.conn.SetOpusFrameProvider(provider)
}

// SetStatus queues a voice channel status update. Updates are debounced.
func (t *DiscordTransport) SetStatus(status string) {
	select {
	case t.statusChan <- status:
	default:
	}
}

// Close stops playback, clears the voice status and leaves the channel.
func (t *DiscordTransport) Close(ctx context.Context) error {
	if t.ctx.Err() != nil {
		return nil
	}
	t.mu.Lock()
	s := t.current
	channelID := t.channelID
	t.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	t.cancel()
	t.wg.Wait()
	t.putStatus(channelID, "")
	t.conn.Close(ctx)
	return nil
}

func (t *DiscordTransport) putStatus(channelID snowflake.ID, status string) error {
	route := rest.NewEndpoint(http.MethodPut, "/channels/"+channelID.String()+"/voice-status")
	return t.client.Rest.Do(route.Compile(nil), map[string]string{"status": status}, nil)
}

func (t *DiscordTransport) statusManager() {
	var cur string
	next := ""
	hasNext := false
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-t.ctx.Done():
			timer.Stop()
			return
		case n := <-t.statusChan:
			next = n
			hasNext = true
		drain:
			for {
				select {
				case n := <-t.statusChan:
					next = n
				default:
					break drain
				}
			}
			if next == cur {
				hasNext = false
				continue
			}
			timer.Reset(500 * time.Millisecond)
		case <-timer.C:
			if !hasNext {
				continue
			}
			target := next
			if len([]rune(target)) > maxVoiceStatus {
				target = sys.TruncateCenter(target, maxVoiceStatus)
			}
			t.statusMu.Lock()
			if target != "" && !strings.HasPrefix(target, PausedStatusPrefix) {
				t.lastStatus = target
			}
			t.statusMu.Unlock()

			channelID := t.Channel()
			if err := t.putStatus(channelID, target); err == nil {
				cur = next
				hasNext = false
			} else {
				sys.LogVoice(sys.MsgVoiceStatusFail, channelID, err)
				timer.Reset(time.Second)
			}
		}
	}
}

// PausedStatusPrefix marks a status line of a paused song.
const PausedStatusPrefix = "⏸️ "

// discordStream hands transcoded frames to the voice connection. It
// implements voice.OpusFrameProvider and Stream.
type discordStream struct {
	frames chan []byte
	cancel context.CancelFunc
	volume atomic.Int64

	pausedMu   sync.Mutex
	pausedCond *sync.Cond
	paused     bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
}

func newDiscordStream(cancel context.CancelFunc, volume float64) *discordStream {
	s := &discordStream{
		frames: make(chan []byte, 100),
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.pausedCond = sync.NewCond(&s.pausedMu)
	s.SetVolume(volume)
	return s
}

// push is the transcoder callback. It reports false once the stream stopped.
func (s *discordStream) push(f []byte) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.stop:
		return false
	}
}

// producerDone queues the end marker after the last frame.
func (s *discordStream) producerDone(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	select {
	case s.frames <- nil:
	case <-s.stop:
	}
}

func (s *discordStream) ProvideOpusFrame() ([]byte, error) {
	s.pausedMu.Lock()
	for s.paused {
		select {
		case <-s.stop:
			s.pausedMu.Unlock()
			return nil, io.EOF
		default:
		}
		s.pausedCond.Wait()
	}
	s.pausedMu.Unlock()

	select {
	case f := <-s.frames:
		if f == nil {
			s.finish()
			return nil, io.EOF
		}
		return f, nil
	case <-s.stop:
		return nil, io.EOF
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}
}

func (s *discordStream) Close() {
	s.Stop()
}

func (s *discordStream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *discordStream) Pause() error {
	if s.stopped() {
		return errors.New("stream stopped")
	}
	s.pausedMu.Lock()
	s.paused = true
	s.pausedMu.Unlock()
	return nil
}

func (s *discordStream) Resume() error {
	if s.stopped() {
		return errors.New("stream stopped")
	}
	s.pausedMu.Lock()
	s.paused = false
	s.pausedCond.Broadcast()
	s.pausedMu.Unlock()
	return nil
}

func (s *discordStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
		s.pausedMu.Lock()
		s.pausedCond.Broadcast()
		s.pausedMu.Unlock()
		s.finish()
	})
}

func (s *discordStream) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *discordStream) SetVolume(v float64) {
	s.volume.Store(int64(math.Round(v * 100)))
}

func (s *discordStream) Done() <-chan struct{} { return s.done }

func (s *discordStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
