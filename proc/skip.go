package proc

import (
	"math"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// SkipVoteTracker counts distinct skip voters for the current song.
type SkipVoteTracker struct {
	mu     sync.Mutex
	voters map[snowflake.ID]struct{}
}

func NewSkipVoteTracker() *SkipVoteTracker {
	return &SkipVoteTracker{voters: make(map[snowflake.ID]struct{})}
}

// AddSkipper records a vote and returns the vote count. Voting twice counts once.
func (t *SkipVoteTracker) AddSkipper(voter snowflake.ID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voters[voter] = struct{}{}
	return len(t.voters)
}

func (t *SkipVoteTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.voters)
}

func (t *SkipVoteTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.voters)
}

// RequiredSkips is the number of votes that skip a song: the absolute cap or
// the ratio of eligible listeners, whichever is lower.
func RequiredSkips(eligible, absolute int, ratio float64) int {
	byRatio := int(math.Ceil(float64(eligible) * ratio))
	return min(absolute, byRatio)
}

// SkipRequest describes one /skip invocation. Eligible is the number of
// listeners allowed to vote.
type SkipRequest struct {
	Voter     snowflake.ID
	IsOwner   bool
	Instaskip bool
	Eligible  int
}

// SkipOutcome reports what a skip request did. Pending is set when Entry was
// still loading and nothing was playing yet.
type SkipOutcome struct {
	Entry    *Entry
	Pending  bool
	Skipped  bool
	Bypassed bool
	Votes    int
	Required int
}

func (r SkipRequest) bypasses(e *Entry) bool {
	return r.IsOwner || r.Instaskip || (e.Requester != 0 && e.Requester == r.Voter)
}

// RequestSkip applies the vote rules to the current song. The requester of
// the song, owners and instaskip members skip without a vote. A song that is
// still loading can only be dropped by them; everyone else has to wait.
func (s *Session) RequestSkip(req SkipRequest) (SkipOutcome, error) {
	current := s.Player.Current()
	if current == nil {
		pending := s.Player.Pending()
		if pending == nil {
			return SkipOutcome{}, newError(InvalidStateTransition, "nothing is playing")
		}
		out := SkipOutcome{Entry: pending, Pending: true}
		if !req.bypasses(pending) {
			return out, nil
		}
		if err := s.Player.Skip(); err != nil {
			return out, err
		}
		out.Skipped, out.Bypassed = true, true
		return out, nil
	}

	out := SkipOutcome{Entry: current}
	if req.bypasses(current) {
		out.Bypassed = true
	} else {
		out.Votes = s.Skips.AddSkipper(req.Voter)
		out.Required = RequiredSkips(req.Eligible, s.Options.SkipsRequired, s.Options.SkipRatio)
		if out.Votes < out.Required {
			return out, nil
		}
	}

	if err := s.Player.Skip(); err != nil {
		return out, err
	}
	out.Skipped = true
	return out, nil
}
