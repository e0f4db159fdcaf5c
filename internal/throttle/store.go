package throttle

import (
	"sync"
	"time"
)

// SessionState is the in-memory pacing state for one session. All reads
// and writes happen under the state's own mutex so the check-and-append
// step of the gate is atomic.
type SessionState struct {
	mu sync.Mutex

	recent          []time.Time
	lastSend        time.Time
	lastToRecipient map[string]time.Time
}

// Store hands out per-session pacing state. The in-memory
// implementation is process-local; a restart starts with empty pacing
// history.
type Store interface {
	State(sessionID string) *SessionState
	Reset(sessionID string)
}

// MemoryStore is the default process-local Store
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*SessionState
}

// NewMemoryStore creates an empty in-memory throttle store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*SessionState)}
}

// State returns the pacing state for a session, creating it lazily
func (s *MemoryStore) State(sessionID string) *SessionState {
	s.mu.RLock()
	state, ok := s.states[sessionID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok = s.states[sessionID]; ok {
		return state
	}
	state = &SessionState{lastToRecipient: make(map[string]time.Time)}
	s.states[sessionID] = state
	return state
}

// Reset clears the pacing state for a session, used when a session is
// deleted or restarted
func (s *MemoryStore) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
}
