package proc

import (
	"fmt"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/musicbot/sys"
)

// EventKind is the closed set of player notifications.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventResume
	EventStop
	EventFinishedPlaying
	EventEntryAdded
	EventIdle
	EventError
	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventFinishedPlaying:
		return "finished-playing"
	case EventEntryAdded:
		return "entry-added"
	case EventIdle:
		return "idle"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Entry is the song the event is about
// (nil for idle). PlaylistEmpty is filled for finished-playing.
type Event struct {
	Kind          EventKind
	Session       snowflake.ID
	Entry         *Entry
	PlaylistEmpty bool
	Err           error
}

// Handler reacts to a player event. A returned error is logged and does not
// stop the remaining handlers.
type Handler func(Event) error

type eventBus struct {
	key      snowflake.ID
	mu       sync.RWMutex
	handlers [eventKindCount][]Handler
}

func (b *eventBus) subscribe(kind EventKind, h Handler) {
	if kind < 0 || kind >= eventKindCount {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

func (b *eventBus) emit(ev Event) {
	ev.Session = b.key
	b.mu.RLock()
	hs := b.handlers[ev.Kind]
	b.mu.RUnlock()
	for _, h := range hs {
		if err := callHandler(h, ev); err != nil {
			sys.LogWarn(sys.MsgPlayerSubscriberFail, ev.Kind, ev.Session, err)
		}
	}
}

func callHandler(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ev)
}
