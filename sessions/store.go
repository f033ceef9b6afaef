package sessions

import (
	"sync"

	"github.com/kiddiebus/kiddiebus-client/users"
)

// Store is the injectable session state container. Reads return copies; every
// mutation is delivered to subscribers in the order it was applied.
//
// Subscribers run synchronously and must not mutate the store from the callback.
type Store struct {
	mu    sync.RWMutex
	state Session
	subs  map[int]func(Session)
	next  int

	// serialises apply+deliver so subscribers observe mutations in order
	notify sync.Mutex
}

// NewStore returns a store in the Starting (loading) state
func NewStore() *Store {
	return NewStoreWith(Starting())
}

func NewStoreWith(initial Session) *Store {
	return &Store{
		state: initial.clone(),
		subs:  make(map[int]func(Session)),
	}
}

func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn for every subsequent change and returns a function that removes it
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Authenticate marks the session as signed in as u
func (s *Store) Authenticate(u *users.User) {
	s.set(Authenticated(u))
}

// SetUser replaces the profile of the signed in user. It does nothing when unauthenticated.
func (s *Store) SetUser(u *users.User) {
	s.apply(func(cur Session) (Session, bool) {
		if !cur.IsAuthenticated {
			return cur, false
		}
		return Authenticated(u), true
	})
}

// Reset signs the session out
func (s *Store) Reset() {
	s.set(Anonymous())
}

func (s *Store) set(next Session) {
	s.apply(func(Session) (Session, bool) { return next, true })
}

func (s *Store) apply(mutate func(Session) (Session, bool)) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	next, changed := mutate(s.state.clone())
	if !changed {
		s.mu.Unlock()
		return
	}
	s.state = next.clone()
	subs := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
}
