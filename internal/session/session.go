package session

import (
	"context"
	"encoding/json"
	"time"

	"mateboard/internal/logging"
	"mateboard/internal/render"
)

// Touch updates the last seen timestamp for a session
func (s *Session) Touch() {
	s.Mu.Lock()
	s.LastSeen = time.Now()
	s.Mu.Unlock()
}

// Start fetches the first board. Concurrent callers wait for the one in
// progress; after a failure the next call tries again.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.Mu.Lock()
	started := s.started
	s.Mu.Unlock()
	if started {
		return nil
	}
	if err := s.Ctrl.Refresh(ctx); err != nil {
		return err
	}
	s.Mu.Lock()
	s.started = true
	s.Mu.Unlock()
	return nil
}

// StateLocked returns the current session state (must be called with lock held)
func (s *Session) StateLocked() State {
	return State{
		Kind:     "state",
		ID:       s.ID,
		Board:    render.Build(s.Ctrl.View()),
		LastSeen: s.LastSeen.UnixMilli(),
		Watchers: len(s.Watchers),
	}
}

// State returns the current session state
func (s *Session) State() State {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.StateLocked()
}

// Broadcast sends the current state to all watchers. Slow watchers miss
// updates rather than block the sender.
func (s *Session) Broadcast() {
	s.Mu.Lock()
	data, err := json.Marshal(s.StateLocked())
	if err != nil {
		s.Mu.Unlock()
		logging.Debugf("session %s: marshal state: %v", s.ID, err)
		return
	}
	for ch := range s.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
	s.Mu.Unlock()
}

// AddWatcher adds a new watcher channel
func (s *Session) AddWatcher(ch chan []byte) {
	s.Mu.Lock()
	s.Watchers[ch] = struct{}{}
	s.Mu.Unlock()
}

// RemoveWatcher removes a watcher channel
func (s *Session) RemoveWatcher(ch chan []byte) {
	s.Mu.Lock()
	delete(s.Watchers, ch)
	s.Mu.Unlock()
}
