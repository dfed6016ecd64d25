package app

import (
	"time"

	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
	"github.com/martian56/videoo-call/internal/domain"
)

// SessionState is the lifecycle position of one peer session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateOffering
	StateAnswering
	StateConnected
	StateDegraded
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "closed"
	}
}

// peerSession is one live media relationship with a remote identity.
// Owned exclusively by the orchestrator's dispatch loop.
type peerSession struct {
	id        domain.Identity
	state     SessionState
	createdAt time.Time
	epoch     uint64
	media     core.MediaSession
	// pendingOffer marks a locally created offer that has not been answered
	// yet; an inbound offer for the same identity discards it (glare rule).
	pendingOffer bool
}

// SessionTable owns one session record per remote identity, plus the
// bounded buffer of ICE candidates that arrived before a session existed
// and the per-identity epoch counters that outlive session removal so
// stale timer firings stay detectable.
type SessionTable struct {
	sessions   map[domain.Identity]*peerSession
	candidates map[domain.Identity]*deque.Deque[webrtc.ICECandidateInit]
	epochs     map[domain.Identity]uint64
	bufferCap  int
	clock      core.Clock
}

func NewSessionTable(bufferCap int, clock core.Clock) *SessionTable {
	return &SessionTable{
		sessions:   make(map[domain.Identity]*peerSession),
		candidates: make(map[domain.Identity]*deque.Deque[webrtc.ICECandidateInit]),
		epochs:     make(map[domain.Identity]uint64),
		bufferCap:  bufferCap,
		clock:      clock,
	}
}

func (t *SessionTable) Get(id domain.Identity) (*peerSession, bool) {
	s, ok := t.sessions[id]
	return s, ok
}

// Create inserts a fresh Idle session. At most one non-Closed session may
// exist per identity; the caller must remove any existing one first.
func (t *SessionTable) Create(id domain.Identity, media core.MediaSession) *peerSession {
	if _, ok := t.sessions[id]; ok {
		// Caller bug; keep the invariant by refusing the duplicate.
		log.Error().Str("module", "app.sessions").Str("peer", string(id)).Msg("duplicate session refused")
		return t.sessions[id]
	}
	s := &peerSession{
		id:        id,
		state:     StateIdle,
		createdAt: t.clock.Now(),
		epoch:     t.epochs[id],
		media:     media,
	}
	t.sessions[id] = s
	log.Info().Str("module", "app.sessions").Str("peer", string(id)).Msg("session created")
	return s
}

// Remove closes the engine resources, drops the record and bumps the
// identity's epoch so any in-flight timer or completion for the old
// session is discarded on arrival.
func (t *SessionTable) Remove(id domain.Identity) {
	s, ok := t.sessions[id]
	if !ok {
		return
	}
	if s.media != nil {
		s.media.Close()
	}
	s.state = StateClosed
	delete(t.sessions, id)
	t.epochs[id]++
	log.Info().Str("module", "app.sessions").Str("peer", string(id)).Msg("session removed")
}

// Epoch returns the identity's current epoch counter.
func (t *SessionTable) Epoch(id domain.Identity) uint64 { return t.epochs[id] }

// BumpEpoch invalidates all outstanding timers for the identity.
func (t *SessionTable) BumpEpoch(id domain.Identity) { t.epochs[id]++ }

// Count returns the number of live sessions.
func (t *SessionTable) Count() int { return len(t.sessions) }

// Each visits every live session.
func (t *SessionTable) Each(fn func(*peerSession)) {
	for _, s := range t.sessions {
		fn(s)
	}
}

// BufferCandidate stores a candidate for an identity with no session yet.
// Returns false when the bounded buffer is full and the candidate was
// discarded.
func (t *SessionTable) BufferCandidate(id domain.Identity, c webrtc.ICECandidateInit) bool {
	q, ok := t.candidates[id]
	if !ok {
		q = &deque.Deque[webrtc.ICECandidateInit]{}
		t.candidates[id] = q
	}
	if q.Len() >= t.bufferCap {
		log.Warn().Str("module", "app.sessions").Str("peer", string(id)).
			Int("buffered", q.Len()).Msg("candidate buffer full, discarded")
		return false
	}
	q.PushBack(c)
	return true
}

// DrainCandidates removes and returns all buffered candidates for an
// identity, in arrival order. Each candidate is returned at most once.
func (t *SessionTable) DrainCandidates(id domain.Identity) []webrtc.ICECandidateInit {
	q, ok := t.candidates[id]
	if !ok || q.Len() == 0 {
		return nil
	}
	out := make([]webrtc.ICECandidateInit, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, q.PopFront())
	}
	delete(t.candidates, id)
	return out
}

// DropCandidates discards any buffered candidates for an identity.
func (t *SessionTable) DropCandidates(id domain.Identity) {
	delete(t.candidates, id)
}
