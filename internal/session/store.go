package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lyra-care/internal/logger"
)

// Store keeps session state between requests.
type Store interface {
	Get(id string) (*State, bool)
	Create() *State
	Delete(id string)
}

// MemoryStore is a process-local Store.  Sessions live until deleted,
// expired, or the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*State
	lastSeen map[string]time.Time
	now      func() time.Time
	log      *logrus.Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*State),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		log:      logger.For("session"),
	}
}

// Get returns the session and marks it as used.
func (m *MemoryStore) Get(id string) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		m.lastSeen[id] = m.now()
	}
	return s, ok
}

func (m *MemoryStore) Create() *State {
	s := NewState(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.lastSeen[s.ID] = m.now()
	m.mu.Unlock()
	return s
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.lastSeen, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire drops sessions not used for longer than ttl and returns how many
// were dropped.
func (m *MemoryStore) Expire(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-ttl)
	n := 0
	for id, seen := range m.lastSeen {
		if seen.Before(cutoff) {
			delete(m.sessions, id)
			delete(m.lastSeen, id)
			n++
		}
	}
	return n
}

// RunExpiry calls Expire every interval until ctx is done.
func (m *MemoryStore) RunExpiry(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Expire(ttl); n > 0 {
				m.log.WithFields(logrus.Fields{"expired": n, "live": m.Len()}).Info("idle sessions expired")
			}
		}
	}
}
