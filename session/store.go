// Package session holds per-conversation state and guarantees that only one
// event handler mutates a session at a time.
package session

import (
	"context"
	"sync"

	"github.com/andklim/insurebot/types"
)

// Session is the mutable state of one open conversation.
type Session struct {
	ID             string
	State          types.State
	IdentityFields types.FieldSet
	VehicleFields  types.FieldSet

	// PendingPrompt is the last confirmation request shown to the user. The
	// interpreter needs it as context for free-text replies. It is stale in
	// any non-confirmation state.
	PendingPrompt string
}

// New returns a session positioned at the start of the intake flow.
func New(id string) *Session {
	return &Session{
		ID:    id,
		State: types.StateAwaitingIdentityDoc,
	}
}

// Reset returns the session to the initial state and drops both field sets.
func (s *Session) Reset() {
	s.State = types.StateAwaitingIdentityDoc
	s.IdentityFields = nil
	s.VehicleFields = nil
	s.PendingPrompt = ""
}

// Store provides exclusive access to sessions keyed by session identity.
type Store interface {
	// Acquire returns the session for id, creating it on first contact. The
	// caller holds an exclusive claim on the session until release is called;
	// concurrent Acquire calls for the same id block, distinct ids proceed
	// independently.
	Acquire(ctx context.Context, id string) (sess *Session, release func(), err error)
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// MemoryStore is the in-memory Store used in production and tests. Sessions
// live for the lifetime of the process; there is no expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

func (m *MemoryStore) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{session: New(id)}
		m.entries[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	return e.session, e.mu.Unlock, nil
}
