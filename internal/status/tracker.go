package status

import (
	"sort"
	"sync"
	"time"

	"wagateway/internal/models"
)

// Store holds last-known delivery status records. The in-memory
// implementation is process-local; last-writer-wins is the accepted
// consistency model.
type Store interface {
	Set(record models.MessageStatusRecord)
	Get(sessionID, messageID string) (*models.MessageStatusRecord, bool)
	List(sessionID string) []models.MessageStatusRecord
	Clear(sessionID string)
	Sweep(olderThan time.Time) int
}

// MemoryStore is the default in-memory status store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]models.MessageStatusRecord
}

// NewMemoryStore creates an empty in-memory status store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]models.MessageStatusRecord)}
}

// Set overwrites the record for its (session, message id) key
func (s *MemoryStore) Set(record models.MessageStatusRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.sessions[record.SessionID]
	if !ok {
		byID = make(map[string]models.MessageStatusRecord)
		s.sessions[record.SessionID] = byID
	}
	byID[record.MessageID] = record
}

// Get returns the record for the key, if any
func (s *MemoryStore) Get(sessionID, messageID string) (*models.MessageStatusRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[sessionID][messageID]
	if !ok {
		return nil, false
	}
	return &record, true
}

// List returns all records for a session, most recently updated first
func (s *MemoryStore) List(sessionID string) []models.MessageStatusRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.sessions[sessionID]
	out := make([]models.MessageStatusRecord, 0, len(byID))
	for _, record := range byID {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Clear removes all records for a session
func (s *MemoryStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sweep evicts records not updated since the cutoff and returns how
// many were removed
func (s *MemoryStore) Sweep(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, byID := range s.sessions {
		for messageID, record := range byID {
			if record.UpdatedAt.Before(olderThan) {
				delete(byID, messageID)
				removed++
			}
		}
		if len(byID) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return removed
}

// Tracker is the delivery-status tracking facade used by the dispatcher
// and the inbound event path
type Tracker struct {
	store Store
}

// NewTracker creates a tracker over the given store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Record overwrites the status for a (session, message id) key
func (t *Tracker) Record(sessionID, messageID, statusValue string, ts time.Time, extra map[string]interface{}) {
	record := models.MessageStatusRecord{
		SessionID: sessionID,
		MessageID: messageID,
		Status:    statusValue,
		UpdatedAt: ts,
		Extra:     extra,
	}
	if extra != nil {
		if from, ok := extra["from"].(string); ok {
			record.From = from
		}
		if to, ok := extra["to"].(string); ok {
			record.To = to
		}
	}
	t.store.Set(record)
}

// Get returns the record for the key, if any
func (t *Tracker) Get(sessionID, messageID string) (*models.MessageStatusRecord, bool) {
	return t.store.Get(sessionID, messageID)
}

// List returns all records for a session, most recently updated first
func (t *Tracker) List(sessionID string) []models.MessageStatusRecord {
	return t.store.List(sessionID)
}

// Clear removes all records for a session
func (t *Tracker) Clear(sessionID string) {
	t.store.Clear(sessionID)
}

// Sweep evicts records not updated since the cutoff
func (t *Tracker) Sweep(olderThan time.Time) int {
	return t.store.Sweep(olderThan)
}
