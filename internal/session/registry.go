package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds at most one active session per learner.
type Registry struct {
	mu      sync.Mutex
	runners map[uuid.UUID]*Runner
}

func NewRegistry() *Registry {
	return &Registry{runners: make(map[uuid.UUID]*Runner)}
}

// Put makes r the learner's active session and reports whether it replaced one.
func (reg *Registry) Put(r *Runner) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, replaced := reg.runners[r.UserID()]
	reg.runners[r.UserID()] = r
	return replaced
}

// Get returns the learner's active session.
func (reg *Registry) Get(userID uuid.UUID) (*Runner, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runners[userID]
	return r, ok
}

// Exit drops the learner's session. Nothing is written for unrated cards.
func (reg *Registry) Exit(userID uuid.UUID) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.runners[userID]
	delete(reg.runners, userID)
	return ok
}
