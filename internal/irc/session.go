package irc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/outofthemadness/handbot/internal/storage"
)

// State is where a Session is in its connection lifecycle
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Session is one live connection's view of the channel: its transcript
// and how far it has got through sign-on.
type Session struct {
	log *storage.MessageLog

	mu    sync.Mutex
	state State
}

// openSession starts a new transcript append session
func openSession(path string, now time.Time) (*Session, error) {
	l, err := storage.OpenMessageLog(path)
	if err != nil {
		return nil, err
	}
	s := &Session{log: l, state: StateConnected}
	s.logf("[connected at %s]", now.Format(time.ANSIC))
	return s, nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) joined(channel string) {
	s.mu.Lock()
	s.state = StateJoined
	s.mu.Unlock()
	s.logf("[I have joined %s]", channel)
}

// close writes the disconnect line and releases the log. Only the first
// call writes anything.
func (s *Session) close(now time.Time) error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logf("[disconnected at %s]", now.Format(time.ANSIC))
	return s.log.Close()
}

func (s *Session) logf(format string, args ...any) {
	if err := s.log.Log(fmt.Sprintf(format, args...)); err != nil {
		slog.Error("failed to write message log", slog.Any("err", err))
	}
}
