// Package selection tracks the selected square and the move-submission
// lockout. It decides which board inputs are accepted; it never touches the
// network and never changes a snapshot.
package selection

import (
	"errors"
	"fmt"

	"mateboard/internal/board"
)

// State is the input state of the board.
type State uint8

const (
	// Idle has no selection and accepts input.
	Idle State = iota
	// PieceSelected has a friendly piece selected with its destinations shown.
	PieceSelected
	// AwaitingServer rejects all board input until the pending request ends.
	AwaitingServer
)

func (s State) String() string {
	switch s {
	case PieceSelected:
		return "PieceSelected"
	case AwaitingServer:
		return "AwaitingServer"
	}
	return "Idle"
}

// None is the selected index when nothing is selected.
const None = -1

var (
	// ErrInvalidSelection covers clicks on pieces that cannot be selected.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNotYourTurn is an InvalidSelection on a piece of the side not to move.
	ErrNotYourTurn = fmt.Errorf("%w: not your turn", ErrInvalidSelection)
	// ErrEmptySquare is an InvalidSelection on a vacant square.
	ErrEmptySquare = fmt.Errorf("%w: empty square", ErrInvalidSelection)
	// ErrIllegalDestination is a move to a square the selected piece cannot reach.
	ErrIllegalDestination = errors.New("illegal destination")
	// ErrNoSelection is a move attempt with nothing selected.
	ErrNoSelection = errors.New("no piece selected")
	// ErrAwaitingServer is any input while a request is in flight.
	ErrAwaitingServer = errors.New("awaiting server reply")
)

// Change describes one transition. Deselected is cleared before Selected is
// applied; either is None when the transition does not touch it.
type Change struct {
	From       State
	To         State
	Deselected int
	Selected   int
}

// Machine is the selection state machine. It is not safe for concurrent
// use; the owner serializes calls.
type Machine struct {
	state    State
	selected int
	pending  *board.Move
}

// New returns a machine in Idle.
func New() *Machine {
	return &Machine{state: Idle, selected: None}
}

func (m *Machine) State() State { return m.state }

// Selected returns the selected index, or None.
func (m *Machine) Selected() int { return m.selected }

// Awaiting reports whether a request is in flight.
func (m *Machine) Awaiting() bool { return m.state == AwaitingServer }

// Pending returns the move awaiting confirmation, if any.
func (m *Machine) Pending() (board.Move, bool) {
	if m.pending == nil {
		return board.Move{}, false
	}
	return *m.pending, true
}

func (m *Machine) unchanged() Change {
	return Change{From: m.state, To: m.state, Deselected: None, Selected: None}
}

func (m *Machine) change(to State, deselected, selected int) Change {
	c := Change{From: m.state, To: to, Deselected: deselected, Selected: selected}
	m.state = to
	return c
}

// Select handles a click on a piece of snap at index.
func (m *Machine) Select(snap *board.Snapshot, index int) (Change, error) {
	if m.state == AwaitingServer {
		return m.unchanged(), ErrAwaitingServer
	}
	p := snap.Piece(index)
	if p.IsEmpty() {
		return m.unchanged(), ErrEmptySquare
	}
	if p.Color != snap.SideToMove() {
		return m.unchanged(), ErrNotYourTurn
	}
	prev := m.selected
	if m.state == PieceSelected && prev == index {
		m.selected = None
		return m.change(Idle, prev, None), nil
	}
	m.selected = index
	return m.change(PieceSelected, prev, index), nil
}

// Commit submits mv for the selected piece. The destination must be one of
// the piece's legal destinations; otherwise nothing changes.
func (m *Machine) Commit(snap *board.Snapshot, mv board.Move) (Change, error) {
	switch m.state {
	case AwaitingServer:
		return m.unchanged(), ErrAwaitingServer
	case Idle:
		return m.unchanged(), ErrNoSelection
	}
	p := snap.Piece(m.selected)
	if mv.From != m.selected || !p.HasDestination(mv.To) {
		return m.unchanged(), ErrIllegalDestination
	}
	prev := m.selected
	m.selected = None
	m.pending = &mv
	return m.change(AwaitingServer, prev, None), nil
}

// Lock enters AwaitingServer for a request that is not a move, dropping any
// selection.
func (m *Machine) Lock() (Change, error) {
	if m.state == AwaitingServer {
		return m.unchanged(), ErrAwaitingServer
	}
	prev := m.selected
	m.selected = None
	return m.change(AwaitingServer, prev, None), nil
}

// Resolve ends the in-flight request. The caller replaces the snapshot on
// success and keeps it on failure; either way the machine returns to Idle.
func (m *Machine) Resolve() Change {
	if m.state != AwaitingServer {
		return m.unchanged()
	}
	m.pending = nil
	return m.change(Idle, None, None)
}

// Revalidate drops a selection that no longer refers to a friendly piece of
// snap, e.g. after the board was replaced from outside a move.
func (m *Machine) Revalidate(snap *board.Snapshot) (Change, bool) {
	if m.state != PieceSelected {
		return m.unchanged(), false
	}
	p := snap.Piece(m.selected)
	if !p.IsEmpty() && p.Color == snap.SideToMove() {
		return m.unchanged(), false
	}
	prev := m.selected
	m.selected = None
	return m.change(Idle, prev, None), true
}
