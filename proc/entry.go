package proc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// EntryStatus is the resolution state of a queue entry.
type EntryStatus int

const (
	EntryPending EntryStatus = iota
	EntryResolved
	EntryFailed
)

func (s EntryStatus) String() string {
	switch s {
	case EntryPending:
		return "Pending"
	case EntryResolved:
		return "Resolved"
	case EntryFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Entry is one slot of a playlist. Requester and Channel are zero for
// autoplaylist entries.
type Entry struct {
	Reference string
	Requester snowflake.ID
	Channel   snowflake.ID

	seq     uint64
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	status EntryStatus
	media  *Media
	err    error
}

func newEntry(parent context.Context, seq uint64, reference string, requester, channel snowflake.ID) *Entry {
	ctx, cancel := context.WithCancel(parent)
	return &Entry{
		Reference: reference,
		Requester: requester,
		Channel:   channel,
		seq:       seq,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Seq is the insertion sequence number, unique within a playlist.
func (e *Entry) Seq() uint64 { return e.seq }

func (e *Entry) Status() EntryStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Media is only available once the entry is resolved.
func (e *Entry) Media() (*Media, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EntryResolved {
		return nil, false
	}
	return e.media, true
}

func (e *Entry) Duration() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EntryResolved {
		return 0, false
	}
	return e.media.Duration, true
}

// Title is the resolved title, or the raw reference while pending.
func (e *Entry) Title() string {
	if m, ok := e.Media(); ok && m.Title != "" {
		return m.Title
	}
	return e.Reference
}

// Err is the failure cause once the entry is Failed.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Done is closed once the entry is resolved or failed.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Wait blocks until the entry settles. It returns nil when resolved and the
// resolution error when failed.
func (e *Entry) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the background resolution. A pending entry becomes Failed
// and any later result is discarded.
func (e *Entry) Cancel() {
	e.cancel()
	e.markFailed(wrapError(ExtractionFailed, context.Canceled, "resolution of %s cancelled", e.Reference))
}

func (e *Entry) markResolved(m *Media) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EntryPending {
		return false
	}
	e.status, e.media = EntryResolved, m
	close(e.done)
	return true
}

func (e *Entry) markFailed(err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EntryPending {
		return false
	}
	e.status, e.err = EntryFailed, err
	close(e.done)
	return true
}
