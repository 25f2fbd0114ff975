package session

import (
	"sync"
	"time"

	"mateboard/internal/controller"
	"mateboard/internal/render"
)

// Factory builds the controller for a new session. notify must be passed to
// controller.WithNotify so watchers see every change.
type Factory func(id string, notify func()) *controller.Controller

// Hub manages all active board sessions
type Hub struct {
	Mu       sync.Mutex
	Sessions map[string]*Session
	factory  Factory
	stop     chan struct{}
}

// Session is one board view with its controller and watchers
type Session struct {
	Mu       sync.Mutex
	ID       string
	Ctrl     *controller.Controller
	Watchers map[chan []byte]struct{}
	LastSeen time.Time
	started  bool
	startMu  sync.Mutex
}

// State is the payload pushed to watchers and returned by the JSON routes
type State struct {
	Kind     string       `json:"kind"`
	ID       string       `json:"id"`
	Board    render.Board `json:"board"`
	LastSeen int64        `json:"lastSeen"`
	Watchers int          `json:"watchers"`
}

// FENRequest loads a position
type FENRequest struct {
	FEN string `json:"fen"`
}

// ThinkRequest sets the agent's time budget in seconds
type ThinkRequest struct {
	Seconds float64 `json:"seconds"`
}

// CountRequest asks for a move count at Depth
type CountRequest struct {
	Depth int `json:"depth"`
}

// CountResult is the reply to CountRequest
type CountResult struct {
	Depth     int    `json:"depth"`
	Moves     uint64 `json:"moves"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// CellMessage is a cell activation sent over the websocket
type CellMessage struct {
	Cell int `json:"cell"`
}
