package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/finvault/internal/logging"
)

// Store is the process-wide session cache, keyed by user id.
type Store interface {
	// Get returns the live session of userID and counts as activity.
	Get(userID string) (*Session, bool)
	// Peek returns the live session of userID without counting as activity.
	Peek(userID string) (*Session, bool)
	// Put installs s, destroying any session it replaces.
	Put(userID string, s *Session)
	// Delete destroys the session and reports whether one existed.
	Delete(userID string) bool
	// Touch marks the session as active without fetching it.
	Touch(userID string)
	Len() int
	// Close destroys every session.
	Close()
}

type entry struct {
	sess     *Session
	gen      uint64
	lastUsed time.Time
	timer    *time.Timer
}

// MemoryStore is a Store guarded by a single mutex. With an idle timeout
// set, a session that sees no activity for that long is locked.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	idle time.Duration
	log  logging.Logger
	now  func() time.Time
}

type Option func(*MemoryStore)

// WithIdleTimeout enables auto-lock after d without activity. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *MemoryStore) { m.idle = d }
}

func WithLogger(l logging.Logger) Option {
	return func(m *MemoryStore) { m.log = l }
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*entry),
		log:     logging.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryStore) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()
	return e.sess, true
}

func (m *MemoryStore) Peek(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

func (m *MemoryStore) Put(userID string, s *Session) {
	m.mu.Lock()
	old := m.entries[userID]
	m.gen++
	e := &entry{sess: s, gen: m.gen, lastUsed: m.now()}
	if m.idle > 0 {
		gen := e.gen
		e.timer = time.AfterFunc(m.idle, func() { m.expire(userID, gen) })
	}
	m.entries[userID] = e
	m.mu.Unlock()

	// destroy outside the store lock: it waits for in-flight operations
	if old != nil {
		old.stop()
		if old.sess != s {
			old.sess.Destroy()
		}
	}
}

func (m *MemoryStore) Delete(userID string) bool {
	m.mu.Lock()
	e, ok := m.entries[userID]
	delete(m.entries, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.stop()
	e.sess.Destroy()
	return true
}

func (m *MemoryStore) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok {
		e.lastUsed = m.now()
	}
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.stop()
		e.sess.Destroy()
	}
}

// expire runs on the idle timer. A timer that belongs to a replaced session
// (older gen) does nothing.
func (m *MemoryStore) expire(userID string, gen uint64) {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		return
	}
	if remaining := m.idle - m.now().Sub(e.lastUsed); remaining > 0 {
		e.timer.Reset(remaining)
		m.mu.Unlock()
		return
	}
	delete(m.entries, userID)
	m.mu.Unlock()

	e.sess.Destroy()
	m.log.Info(context.Background(), "session auto-locked", "user_id", userID, "idle", m.idle.String())
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}
