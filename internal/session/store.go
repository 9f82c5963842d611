package session

import (
	"sync"

	"github.com/clipgram/clipgram/internal/model"
)

// Store maps a chat to its last resolved session. Writes replace any prior
// session for the chat atomically with respect to concurrent reads. Entries
// have no TTL; a stale session persists until overwritten or process end.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]model.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]model.Session),
	}
}

// Put records the session for a chat, replacing any existing one.
func (s *Store) Put(chatID int64, sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

// Get returns the live session for a chat, if any.
func (s *Store) Get(chatID int64) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// Delete discards the session for a chat. Not required for correctness but
// keeps the map small once a selection has been consumed.
func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
