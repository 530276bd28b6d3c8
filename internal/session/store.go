package session

import (
	"sync"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// Store is the single shared session. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State
	subs  map[int]chan State
	next  int
}

// NewStore returns a store in the Initial state.
func NewStore() *Store {
	return &Store{
		state: Initial(),
		subs:  make(map[int]chan State),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Dispatch applies a and notifies subscribers. It returns the new state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)

	// Sends never block, so holding the lock keeps them ordered and safe
	// against a concurrent unsubscribe closing the channel.
	for _, ch := range s.subs {
		select {
		case ch <- s.state.Clone():
		default:
		}
	}
	return s.state.Clone()
}

// SetUser dispatches SetUser.
func (s *Store) SetUser(u domain.User, tokens domain.TokenInfo) State {
	return s.Dispatch(SetUser{User: u, Tokens: tokens})
}

// UpdateUser dispatches UpdateUser.
func (s *Store) UpdateUser(p domain.UserPatch) State {
	return s.Dispatch(UpdateUser{Patch: p})
}

// UpdateTokens dispatches UpdateTokens.
func (s *Store) UpdateTokens(tokens domain.TokenInfo) State {
	return s.Dispatch(UpdateTokens{Tokens: tokens})
}

// ClearAuth dispatches ClearAuth.
func (s *Store) ClearAuth() State {
	return s.Dispatch(ClearAuth{})
}

// SetLoading dispatches SetLoading.
func (s *Store) SetLoading(loading bool) State {
	return s.Dispatch(SetLoading{Loading: loading})
}

// Subscribe returns a channel receiving every new state and a function
// that unsubscribes and closes it. Slow readers miss intermediate states.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan State, 10)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}
