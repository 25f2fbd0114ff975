// Package controller dispatches board input through the selection machine
// and the authority gateway. It owns the current snapshot and replaces it
// wholesale after every successful authority call.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mateboard/internal/board"
	"mateboard/internal/codec"
	"mateboard/internal/gateway"
	"mateboard/internal/logging"
	"mateboard/internal/selection"
)

// Gateway is the authority the controller talks to. *gateway.Client
// implements it.
type Gateway interface {
	Board(ctx context.Context) (*board.Snapshot, error)
	Move(ctx context.Context, m board.Move) (*board.Snapshot, error)
	LoadPosition(ctx context.Context, fen string) (*board.Snapshot, error)
	AgentMove(ctx context.Context) (gateway.AgentReply, error)
	SetThinkTime(ctx context.Context, d time.Duration) error
	CountMoves(ctx context.Context, depth int) (gateway.MoveCount, error)
}

// Action is what a cell activation did.
type Action uint8

const (
	// Ignored means input arrived while a request was in flight.
	Ignored Action = iota
	Selected
	Deselected
	// Moved means the authority accepted the move and the snapshot was replaced.
	Moved
	// RolledBack means the move was sent and failed; the snapshot is unchanged.
	RolledBack
	// Rejected means the click was refused locally.
	Rejected
)

func (a Action) String() string {
	switch a {
	case Selected:
		return "selected"
	case Deselected:
		return "deselected"
	case Moved:
		return "moved"
	case RolledBack:
		return "rolled back"
	case Rejected:
		return "rejected"
	}
	return "ignored"
}

// Result describes one cell activation.
type Result struct {
	Action Action
	Change selection.Change
	Move   board.Move
}

// View is a consistent copy of the controller state for rendering.
type View struct {
	Board       *board.Snapshot
	State       selection.State
	Selected    int
	LastMove    *board.Move
	Agent       *gateway.AgentReply
	Notice      string
	Orientation codec.Orientation
}

// Controller serializes all input for one board. Network calls run without
// the lock held; the AwaitingServer state keeps other input out meanwhile.
type Controller struct {
	mu          sync.Mutex
	gw          Gateway
	snap        *board.Snapshot
	machine     *selection.Machine
	lastMove    *board.Move
	agent       *gateway.AgentReply
	notice      string
	orientation codec.Orientation
	autoAgent   bool
	agentSide   board.Color
	notify      func()
	log         *slog.Logger

	// gen counts snapshot replacements
	gen uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithOrientation sets the display orientation reported in views.
func WithOrientation(o codec.Orientation) Option {
	return func(c *Controller) { c.orientation = o }
}

// WithAutoAgent makes the remote agent reply automatically whenever side is
// to move after an accepted move.
func WithAutoAgent(side board.Color) Option {
	return func(c *Controller) {
		c.autoAgent = true
		c.agentSide = side
	}
}

// WithNotify registers fn to run after every state change, outside the lock.
func WithNotify(fn func()) Option {
	return func(c *Controller) { c.notify = fn }
}

// New returns a controller showing a blank board until the first Refresh.
func New(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:      gw,
		snap:    board.Blank(),
		machine: selection.New(),
		log:     logging.For("controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Board:       c.snap,
		State:       c.machine.State(),
		Selected:    c.machine.Selected(),
		Notice:      c.notice,
		Orientation: c.orientation,
	}
	if c.lastMove != nil {
		m := *c.lastMove
		v.LastMove = &m
	}
	if c.agent != nil {
		a := *c.agent
		v.Agent = &a
	}
	return v
}

// Snapshot returns the current board.
func (c *Controller) Snapshot() *board.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) changed() {
	if c.notify != nil {
		c.notify()
	}
}

// Activate handles a click on the cell at index.
func (c *Controller) Activate(ctx context.Context, index int) (Result, error) {
	if !codec.ValidIndex(index) {
		return Result{Action: Rejected}, &codec.RangeError{What: "index", Value: index}
	}

	c.mu.Lock()
	if c.machine.Awaiting() {
		c.mu.Unlock()
		logging.Debugf("cell %d ignored while awaiting the authority", index)
		return Result{Action: Ignored}, selection.ErrAwaitingServer
	}
	snap := c.snap
	p := snap.Piece(index)

	if !p.IsEmpty() && p.Color == snap.SideToMove() {
		ch, err := c.machine.Select(snap, index)
		c.notice = ""
		c.mu.Unlock()
		if err != nil {
			return Result{Action: Rejected, Change: ch}, err
		}
		c.changed()
		if ch.To == selection.Idle {
			return Result{Action: Deselected, Change: ch}, nil
		}
		return Result{Action: Selected, Change: ch}, nil
	}

	sel := c.machine.Selected()
	if sel == selection.None {
		_, err := c.machine.Select(snap, index)
		c.setNoticeLocked(err)
		c.mu.Unlock()
		c.changed()
		c.log.Debug("selection refused", "index", index, "error", err)
		return Result{Action: Rejected, Change: noChange(c.machine.State())}, err
	}

	candidates := snap.Piece(sel).MovesTo(index)
	if len(candidates) == 0 {
		err := selection.ErrIllegalDestination
		if !p.IsEmpty() {
			err = selection.ErrNotYourTurn
		}
		c.setNoticeLocked(err)
		c.mu.Unlock()
		c.changed()
		c.log.Debug("destination refused", "from", sel, "to", index, "error", err)
		return Result{Action: Rejected, Change: noChange(selection.PieceSelected)}, err
	}

	mv := chooseMove(candidates)
	ch, err := c.machine.Commit(snap, mv)
	if err != nil {
		c.mu.Unlock()
		return Result{Action: Rejected, Change: ch}, err
	}
	c.notice = ""
	c.mu.Unlock()
	c.changed()

	return c.submit(ctx, mv, ch)
}

func (c *Controller) submit(ctx context.Context, mv board.Move, ch selection.Change) (Result, error) {
	next, err := c.gw.Move(ctx, mv)

	c.mu.Lock()
	if err != nil {
		c.machine.Resolve()
		c.notice = "Move rejected: " + describe(err)
		c.mu.Unlock()
		c.log.Warn("move rolled back", "move", mv.String(), "error", err)
		c.changed()
		return Result{Action: RolledBack, Change: ch, Move: mv}, err
	}
	c.setSnapLocked(next)
	c.lastMove = &mv
	reply := c.autoAgent && next.Outcome() == board.Ongoing && next.SideToMove() == c.agentSide
	if !reply {
		c.machine.Resolve()
	}
	c.mu.Unlock()
	c.changed()

	if reply {
		// the lockout stays up for the agent's reply
		if err := c.agentExchange(ctx); err != nil {
			c.log.Warn("agent reply failed", "error", err)
		}
	}
	return Result{Action: Moved, Change: ch, Move: mv}, nil
}

// RequestAgentMove asks the remote agent to play for the side to move, then
// fetches the resulting board.
func (c *Controller) RequestAgentMove(ctx context.Context) (gateway.AgentReply, error) {
	if err := c.lock(); err != nil {
		return gateway.AgentReply{}, err
	}
	if err := c.agentExchange(ctx); err != nil {
		return gateway.AgentReply{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.agent, nil
}

// agentExchange runs with the machine in AwaitingServer and always leaves
// it Idle.
func (c *Controller) agentExchange(ctx context.Context) error {
	reply, err := c.gw.AgentMove(ctx)
	var next *board.Snapshot
	if err == nil {
		next, err = c.gw.Board(ctx)
	}

	c.mu.Lock()
	c.machine.Resolve()
	if err != nil {
		c.notice = "Agent failed: " + describe(err)
		c.mu.Unlock()
		c.changed()
		return err
	}
	c.setSnapLocked(next)
	mv := reply.Move
	c.lastMove = &mv
	c.agent = &reply
	c.notice = ""
	c.mu.Unlock()
	c.log.Info("agent moved", "move", mv.String(), "depth", reply.Depth, "duration", reply.Duration)
	c.changed()
	return nil
}

// Refresh replaces the snapshot with the authority's current board.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.replace(ctx, "refresh", c.gw.Board)
}

// LoadPosition loads fen on the authority; an empty fen loads the starting
// position.
func (c *Controller) LoadPosition(ctx context.Context, fen string) error {
	return c.replace(ctx, "load position", func(ctx context.Context) (*board.Snapshot, error) {
		return c.gw.LoadPosition(ctx, fen)
	})
}

func (c *Controller) replace(ctx context.Context, what string, call func(context.Context) (*board.Snapshot, error)) error {
	if err := c.lock(); err != nil {
		return err
	}
	next, err := call(ctx)

	c.mu.Lock()
	c.machine.Resolve()
	if err != nil {
		c.notice = fmt.Sprintf("%s failed: %s", what, describe(err))
		c.mu.Unlock()
		c.log.Warn(what+" failed", "error", err)
		c.changed()
		return err
	}
	c.setSnapLocked(next)
	c.lastMove = nil
	c.notice = ""
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Controller) setSnapLocked(next *board.Snapshot) {
	c.snap = next
	c.gen++
}

// Sync fetches the authority's board without locking input. The result is
// dropped if a request is in flight or the snapshot changed meanwhile. A
// selection survives when its piece is still the side to move's.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Awaiting() {
		c.mu.Unlock()
		return selection.ErrAwaitingServer
	}
	gen := c.gen
	cur := c.snap
	c.mu.Unlock()

	next, err := c.gw.Board(ctx)
	if err != nil {
		return err
	}
	if next.FEN() == cur.FEN() && next.Hash() == cur.Hash() {
		return nil
	}

	c.mu.Lock()
	if c.machine.Awaiting() || c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.setSnapLocked(next)
	c.lastMove = nil
	if _, dropped := c.machine.Revalidate(next); dropped {
		c.log.Debug("selection dropped after sync")
	}
	c.mu.Unlock()
	c.changed()
	return nil
}

// SetThinkTime forwards the agent's time budget. It does not touch the board.
func (c *Controller) SetThinkTime(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("think time must be positive, got %s", d)
	}
	return c.gw.SetThinkTime(ctx, d)
}

// CountMoves runs a perft on the authority's current position.
func (c *Controller) CountMoves(ctx context.Context, depth int) (gateway.MoveCount, error) {
	if depth < 1 {
		return gateway.MoveCount{}, fmt.Errorf("depth must be at least 1, got %d", depth)
	}
	return c.gw.CountMoves(ctx, depth)
}

func (c *Controller) lock() error {
	c.mu.Lock()
	_, err := c.machine.Lock()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.changed()
	return nil
}

func (c *Controller) setNoticeLocked(err error) {
	switch {
	case errors.Is(err, selection.ErrNotYourTurn):
		c.notice = "Not your turn"
	case errors.Is(err, selection.ErrEmptySquare):
		c.notice = "Empty square"
	case err != nil:
		c.notice = ""
	}
}

// chooseMove picks the move for a destination. Promotions default to the
// queen.
func chooseMove(candidates []board.Move) board.Move {
	for _, m := range candidates {
		if m.Flags.IsPromotion() && codec.MustDecode(m.Flags).Promotion == codec.PromoteQueen {
			return m
		}
	}
	m := candidates[0]
	if m.Flags.IsPromotion() {
		m.Flags = m.Flags.WithPromotion(codec.PromoteQueen)
	}
	return m
}

func noChange(s selection.State) selection.Change {
	return selection.Change{From: s, To: s, Deselected: selection.None, Selected: selection.None}
}

func describe(err error) string {
	var se *gateway.StatusError
	switch {
	case errors.As(err, &se):
		return se.Error()
	case errors.Is(err, gateway.ErrNetworkTimeout):
		return "authority timed out"
	case errors.Is(err, gateway.ErrNetworkFailure):
		return "authority unreachable"
	case errors.Is(err, board.ErrMalformedSnapshot):
		return "authority sent an invalid board"
	}
	return err.Error()
}
