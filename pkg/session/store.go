package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/scene"
)

// DefaultTTL expires sessions idle for this long.
const DefaultTTL = 30 * time.Minute

// Store holds sessions in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl without
// activity. A ttl of zero never expires.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session at state s.
func (st *Store) Create(s *scene.State) *Session {
	sess := newSession(uuid.NewString(), s, st.now())
	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns a live session and marks it active.
func (st *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.New(errs.ErrCodeSessionNotFound, "session %q not found", id)
	}
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()

	now := st.now()
	if !ok || sess.expired(now, st.ttl) {
		if ok {
			st.Delete(id)
		}
		return nil, errs.New(errs.ErrCodeSessionNotFound, "session %q not found", id)
	}
	sess.touch(now)
	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of stored sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (st *Store) Cleanup() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, sess := range st.sessions {
		if sess.expired(now, st.ttl) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done. onCleanup, if not
// nil, receives the number of sessions left after each pass.
func (st *Store) Run(ctx context.Context, interval time.Duration, onCleanup func(removed, active int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := st.Cleanup()
			if onCleanup != nil {
				onCleanup(removed, st.Len())
			}
		}
	}
}
