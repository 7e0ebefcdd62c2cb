package storage

import "sync"

// LastMessages remembers the most recent message each user sent.
// Entries are never expired; memory is bounded by the number of distinct
// speakers seen during the process lifetime.
type LastMessages struct {
	mu       sync.RWMutex
	messages map[string]string
}

// NewLastMessages creates an empty store
func NewLastMessages() *LastMessages {
	return &LastMessages{messages: make(map[string]string)}
}

// Record overwrites the stored message for user
func (s *LastMessages) Record(user, text string) {
	s.mu.Lock()
	s.messages[user] = text
	s.mu.Unlock()
}

// Get returns the stored message for user, if any
func (s *LastMessages) Get(user string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.messages[user]
	return text, ok
}
