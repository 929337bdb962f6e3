// Package session implements the core's own session lifecycle store: an
// in-memory map of active SRP sessions keyed by a server-assigned 32-bit id,
// with single-writer-per-session compare-and-set transitions and TTL-based
// expiry.
//
// Each session also gets a cancelable per-session expiry timer built on
// github.com/ivahaev/timer, so expiry is proactive rather than relying
// solely on the periodic Sweep.
package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ivahaev/timer"
)

// State is a session's position in its lifecycle.
type State int

const (
	Negotiated State = iota
	EphemeralSent
	Proven
	Dead
)

// Row is the session record owned by the store. Fields set once during
// SetEphemeral (ClientEphemeral, ServerEphemeral, ServerSecret) are never
// written again; MExpected/HAMK are cached there at the same time so a
// SERVER_PROOF handler need not re-derive them, avoiding a second modular
// exponentiation per proof.
type Row struct {
	ID              uint32
	CorrelationID   string // uuid, carried through log lines for this session's lifetime
	UserID          string
	Username        string
	Salt            []byte
	Version         uint8
	ClientSession   uint32

	ClientEphemeral []byte // A
	ServerEphemeral []byte // B
	ServerSecret    []byte // b
	MExpected       []byte
	HAMK            []byte

	State     State
	CreatedAt time.Time
}

// Store is the in-memory session store. All mutating methods are
// compare-and-set: they succeed only from the expected precondition state,
// so two concurrent handlers racing on the same session id never both
// succeed.
type Store struct {
	mu       sync.Mutex
	sessions map[uint32]*Row
	timers   map[uint32]*timer.Timer
	rng      *rand.Rand
	ttl      time.Duration
}

// New builds an empty store with the given session TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		sessions: map[uint32]*Row{},
		timers:   map[uint32]*timer.Timer{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ttl:      ttl,
	}
}

// maxIDCollisionRetries bounds how many times Create redraws a session id
// before giving up and surfacing overload to the caller. Ids are drawn
// uniformly from the full 32-bit space, so collisions are exceedingly rare,
// but unbounded retry is still the wrong failure mode under genuine load.
const maxIDCollisionRetries = 8

// ErrOverloaded is returned by Create when it cannot find a free session id
// within the retry bound; the caller should reply with TRY_LATER.
var ErrOverloaded = errOverloaded{}

type errOverloaded struct{}

func (errOverloaded) Error() string { return "session: too many id collisions" }

// Create allocates a new session in state Negotiated for userID, returning
// its randomly-chosen id. kill is invoked when the session's expiry timer
// fires after the TTL, whatever state the session has reached by then,
// Proven included; Kill, and expiry detected first by Get, SetEphemeral or
// Sweep, stop the timer, and kill is then not invoked.
// Create returns ErrOverloaded if it cannot find a free id within
// maxIDCollisionRetries tries.
func (s *Store) Create(userID, username string, salt []byte, version uint8, clientSession uint32, kill func(id uint32)) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id uint32
	found := false
	for i := 0; i < maxIDCollisionRetries; i++ {
		candidate := s.rng.Uint32()
		if _, exists := s.sessions[candidate]; !exists {
			id = candidate
			found = true
			break
		}
	}
	if !found {
		return 0, ErrOverloaded
	}

	row := &Row{
		ID:            id,
		CorrelationID: uuid.NewString(),
		UserID:        userID,
		Username:      username,
		Salt:          salt,
		Version:       version,
		ClientSession: clientSession,
		State:         Negotiated,
		CreatedAt:     time.Now(),
	}
	s.sessions[id] = row

	t := timer.AfterFunc(s.ttl, func() {
		s.Kill(id)
		if kill != nil {
			kill(id)
		}
	})
	t.Start()
	s.timers[id] = t

	return id, nil
}

// Get returns the session for id, or ok=false if it does not exist, has
// expired, or is Dead.
func (s *Store) Get(id uint32, now time.Time) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.sessions[id]
	if !exists || row.State == Dead {
		return Row{}, false
	}
	if now.Sub(row.CreatedAt) > s.ttl {
		s.killLocked(id)
		return Row{}, false
	}
	return *row, true
}

// SetEphemeral atomically records (A, B, b) and the cached proof material,
// transitioning Negotiated -> EphemeralSent. It fails (ok=false) if the
// session doesn't exist, has expired, or has already left Negotiated.
// SetEphemeral may be called at most once per session.
func (s *Store) SetEphemeral(id uint32, A, B, b, mExpected, hamk []byte, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.sessions[id]
	if !exists || row.State != Negotiated {
		return false
	}
	if now.Sub(row.CreatedAt) > s.ttl {
		s.killLocked(id)
		return false
	}

	row.ClientEphemeral = A
	row.ServerEphemeral = B
	row.ServerSecret = b
	row.MExpected = mExpected
	row.HAMK = hamk
	row.State = EphemeralSent
	return true
}

// MarkProven transitions EphemeralSent -> Proven. It fails if the session
// doesn't exist or is not in EphemeralSent, so a session answers at most one
// SERVER_PROOF.
func (s *Store) MarkProven(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.sessions[id]
	if !exists || row.State != EphemeralSent {
		return false
	}
	row.State = Proven
	return true
}

// Kill transitions id to Dead and cancels its expiry timer. Safe to call
// more than once or on an id that no longer exists.
func (s *Store) Kill(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked(id)
}

func (s *Store) killLocked(id uint32) {
	if row, exists := s.sessions[id]; exists {
		row.State = Dead
	}
	if t, exists := s.timers[id]; exists {
		t.Stop()
		delete(s.timers, id)
	}
}

// Sweep removes every session whose CreatedAt is older than the store's TTL,
// or that is already Dead. cmd/authd runs it on a periodic ticker, as a
// backstop alongside each session's own expiry timer.
func (s *Store) Sweep(now time.Time) (removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.sessions {
		if row.State == Dead || now.Sub(row.CreatedAt) > s.ttl {
			if t, exists := s.timers[id]; exists {
				t.Stop()
				delete(s.timers, id)
			}
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of sessions currently tracked, live or dead,
// mainly for tests and metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
