package session

import "sync"

// InFlight guards against concurrent work for the same chat. A chat holds at
// most one slot; callers bracket the resolve phase with it and take it again
// for the lifetime of a selected job. This is independent of the job queue's
// own serialization of downloads.
type InFlight struct {
	mu    sync.Mutex
	chats map[int64]struct{}
}

// NewInFlight creates an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{
		chats: make(map[int64]struct{}),
	}
}

// TryAcquire claims the slot for a chat. It returns false when a resolution
// is already running for that chat.
func (g *InFlight) TryAcquire(chatID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.chats[chatID]; busy {
		return false
	}
	g.chats[chatID] = struct{}{}
	return true
}

// Release frees the slot for a chat. Releasing an unheld slot is a no-op.
func (g *InFlight) Release(chatID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.chats, chatID)
}
