package session

import (
	"time"
)

const (
	// MaxIdle is how long a session survives without activity.
	MaxIdle       = 24 * time.Hour
	sweepInterval = 5 * time.Minute
)

// NewHub creates a new session hub with cleanup goroutine
func NewHub(factory Factory) *Hub {
	h := &Hub{
		Sessions: make(map[string]*Session),
		factory:  factory,
		stop:     make(chan struct{}),
	}
	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-t.C:
				h.Sweep(MaxIdle)
			}
		}
	}()
	return h
}

// Close stops the cleanup goroutine.
func (h *Hub) Close() {
	close(h.stop)
}

// Sweep drops sessions idle for longer than maxIdle and returns their ids.
func (h *Hub) Sweep(maxIdle time.Duration) []string {
	var dropped []string
	h.Mu.Lock()
	for id, s := range h.Sessions {
		s.Mu.Lock()
		idle := time.Since(s.LastSeen) > maxIdle
		s.Mu.Unlock()
		if idle {
			delete(h.Sessions, id)
			dropped = append(dropped, id)
		}
	}
	h.Mu.Unlock()
	return dropped
}

// Get retrieves an existing session or creates a new one
func (h *Hub) Get(id string) *Session {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if s, ok := h.Sessions[id]; ok {
		return s
	}
	s := &Session{
		ID:       id,
		Watchers: make(map[chan []byte]struct{}),
		LastSeen: time.Now(),
	}
	s.Ctrl = h.factory(id, s.Broadcast)
	h.Sessions[id] = s
	return s
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Sessions)
}
