// Package session holds the authenticated state of the current client and
// the manager that is the only writer of that state.
//
// A Store publishes immutable Snapshots. Every mutation bumps a generation
// counter; asynchronous operations remember the generation they started at
// and drop their result if anything else was written in the meantime, so a
// slow profile fetch can never resurrect a session that was logged out.
package session

import (
	"sync"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// Snapshot is a read-only view of the session at one point in time.
// Callers must not modify User.
type Snapshot struct {
	Token      string
	User       *models.User
	Loading    bool
	Generation uint64
}

// IsAuthenticated holds exactly when both token and user are present
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// Role derives the role from the user record; empty when not authenticated
func (s Snapshot) Role() models.UserType {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.User.UserType
}

func (s Snapshot) IsClient() bool   { return s.Role() == models.UserTypeClient }
func (s Snapshot) IsProvider() bool { return s.Role() == models.UserTypeProvider }
func (s Snapshot) IsMaster() bool   { return s.Role() == models.UserTypeMaster }

// state is the mutable interior of a Store
type state struct {
	snap Snapshot
	// credential mirrors the durable record; the gateway reads it for the
	// bearer header. It can be set while snap is still empty (hydration).
	credential string
}

// anyGeneration makes commit unconditional
const anyGeneration = ^uint64(0)

// Store is the single in-memory source of truth for the session
type Store struct {
	mu      sync.RWMutex
	st      state
	gen     uint64
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore returns an empty store in the loading state
func NewStore() *Store {
	return &Store{
		st:   state{snap: Snapshot{Loading: true}},
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current session
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.snap
}

// Credential returns the bearer token to send on outgoing calls
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.credential
}

// Subscribe returns a channel that receives every new snapshot, starting
// with the current one. Delivery keeps only the latest value, so a slow
// reader sees fewer updates but never a stale final state.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- s.st.snap

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// seed sets the credential mirror without publishing, provided nothing was
// committed since expect. It returns the generation hydration should be
// checked against.
func (s *Store) seed(expect uint64, credential string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != expect {
		return s.gen, false
	}
	s.st.credential = credential
	s.gen++
	return s.gen, true
}

// commit runs fn against the state if the generation still equals expect
// (or expect is anyGeneration). fn may do durable I/O; if it returns an
// error nothing is changed. fn returning errUnchanged leaves the state and
// generation alone without reporting a failure.
func (s *Store) commit(expect uint64, fn func(next *state) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expect != anyGeneration && expect != s.gen {
		return false, nil
	}

	next := s.st
	if err := fn(&next); err != nil {
		if err == errUnchanged {
			return true, nil
		}
		return false, err
	}

	s.gen++
	next.snap.Generation = s.gen
	next.snap.User = next.snap.User.Clone()
	s.st = next
	s.publishLocked()
	return true, nil
}

func (s *Store) publishLocked() {
	snap := s.st.snap
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the unread value and replace it with the newest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
