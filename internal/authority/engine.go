// Package authority is a development chess authority serving the board
// protocol. Rules come from corentings/chess; search and perft run on
// dragontoothmg.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/dylhunn/dragontoothmg"
	"github.com/google/uuid"

	"mateboard/internal/codec"
	"mateboard/internal/logging"
	"mateboard/internal/protocol"
	"mateboard/internal/storage"
)

const (
	DefaultThinkTime = 2 * time.Second
	DefaultDepth     = 4
	MaxPerftDepth    = 6
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadFEN      = errors.New("invalid FEN")
	ErrGameOver    = errors.New("game is over")
	ErrBadRequest  = errors.New("bad request")
)

// Engine holds one game. All methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	game   *chess.Game
	hasher *chess.ZobristHasher
	think  time.Duration
	depth  int
	store  *storage.Store
	id     uuid.UUID
	plies  int
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithThinkTime sets the agent's initial time budget.
func WithThinkTime(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.think = d
		}
	}
}

// WithDepth caps the agent's search depth.
func WithDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.depth = n
		}
	}
}

// WithStore persists the position under id after every change.
func WithStore(s *storage.Store, id uuid.UUID) Option {
	return func(e *Engine) {
		e.store = s
		e.id = id
	}
}

// NewEngine returns an engine at the starting position.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		game:   chess.NewGame(),
		hasher: chess.NewZobristHasher(),
		think:  DefaultThinkTime,
		depth:  DefaultDepth,
		log:    logging.For("authority"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore loads the persisted position, creating the row if it does not
// exist yet. It is a no-op without a store.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, err := e.store.LoadPosition(ctx, e.id)
	if errors.Is(err, storage.ErrNotFound) {
		return e.store.CreatePosition(ctx, e.id, e.game.FEN(), time.Now())
	}
	if err != nil {
		return err
	}
	opt, err := chess.FEN(pos.FEN)
	if err != nil {
		return fmt.Errorf("%w: stored position %s: %v", ErrBadFEN, e.id, err)
	}
	e.game = chess.NewGame(opt)
	e.plies = len(pos.Moves)
	e.log.Info("position restored", "id", e.id, "fen", pos.FEN, "moves", e.plies)
	return nil
}

// Board returns the current board.
func (e *Engine) Board() (protocol.Board, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boardLocked()
}

// Move applies m. The move must match one of the legal moves including its
// flags.
func (e *Engine) Move(ctx context.Context, m protocol.Move) (protocol.Board, error) {
	if !codec.ValidIndex(m.From) || !codec.ValidIndex(m.To) {
		return protocol.Board{}, fmt.Errorf("%w: square out of range", ErrBadRequest)
	}
	if _, err := codec.DecodeFlags(m.Flags); err != nil {
		return protocol.Board{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game.Outcome() != chess.NoOutcome {
		return protocol.Board{}, ErrGameOver
	}
	pos := e.game.Position()
	from, to := toSquare(m.From), toSquare(m.To)
	for _, cm := range pos.ValidMoves() {
		if cm.S1() != from || cm.S2() != to || int(flagsFor(pos, &cm)) != m.Flags {
			continue
		}
		if err := e.applyLocked(ctx, &cm, false); err != nil {
			return protocol.Board{}, err
		}
		return e.boardLocked()
	}
	return protocol.Board{}, fmt.Errorf("%w: %s", ErrIllegalMove, codec.MoveName(m.From, m.To, codec.Flags(m.Flags)))
}

// LoadFEN replaces the game with fen. An empty fen loads the starting
// position.
func (e *Engine) LoadFEN(ctx context.Context, fen string) (protocol.Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = protocol.StartingFEN
	}
	if len(strings.Fields(fen)) != 6 {
		return protocol.Board{}, fmt.Errorf("%w: want 6 fields", ErrBadFEN)
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return protocol.Board{}, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.game = chess.NewGame(opt)
	e.plies = 0
	if err := e.store.ClearMoves(ctx, e.id); err != nil {
		e.log.Warn("failed to clear move history", "error", err)
	}
	e.persistLocked(ctx)
	logging.Debugf("position loaded: %s", fen)
	return e.boardLocked()
}

// SetThinkTime sets the agent's time budget.
func (e *Engine) SetThinkTime(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: think time must be positive", ErrBadRequest)
	}
	e.mu.Lock()
	e.think = d
	e.mu.Unlock()
	return nil
}

// ThinkTime returns the agent's time budget.
func (e *Engine) ThinkTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.think
}

// AgentMove searches the current position and plays the best move found.
func (e *Engine) AgentMove(ctx context.Context) (protocol.AgentReply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game.Outcome() != chess.NoOutcome {
		return protocol.AgentReply{}, ErrGameOver
	}
	pos := e.game.Position()
	start := time.Now()
	res, err := search(ctx, pos.String(), e.depth, e.think)
	if err != nil {
		return protocol.AgentReply{}, err
	}
	elapsed := time.Since(start)

	var chosen *chess.Move
	for _, cm := range pos.ValidMoves() {
		if cm.S1() == chess.Square(res.move.From()) && cm.S2() == chess.Square(res.move.To()) && cm.Promo() == promoFromDragon(res.move.Promote()) {
			chosen = &cm
			break
		}
	}
	if chosen == nil {
		return protocol.AgentReply{}, fmt.Errorf("agent chose %s which is not legal here", res.move.String())
	}
	reply := protocol.AgentReply{
		Depth:      res.depth,
		Duration:   elapsed.Milliseconds(),
		Evaluation: res.evaluation,
		AIMove: protocol.Move{
			From:     fromSquare(chosen.S1()),
			To:       fromSquare(chosen.S2()),
			Flags:    int(flagsFor(pos, chosen)),
			Notation: chess.AlgebraicNotation{}.Encode(pos, chosen),
		},
	}
	if err := e.applyLocked(ctx, chosen, true); err != nil {
		return protocol.AgentReply{}, err
	}
	e.log.Info("agent moved", "move", reply.AIMove.Notation, "depth", res.depth, "nodes", res.nodes, "took", elapsed)
	return reply, nil
}

// CountMoves counts leaf nodes of the legal move tree to depth.
func (e *Engine) CountMoves(depth int) (protocol.MoveCount, error) {
	if depth < 1 || depth > MaxPerftDepth {
		return protocol.MoveCount{}, fmt.Errorf("%w: depth must be in [1,%d]", ErrBadRequest, MaxPerftDepth)
	}
	e.mu.Lock()
	fen := e.game.FEN()
	e.mu.Unlock()

	start := time.Now()
	b := dragontoothmg.ParseFen(fen)
	n := perft(&b, depth)
	return protocol.MoveCount{Moves: n, ElapsedTime: time.Since(start).Milliseconds()}, nil
}

func (e *Engine) applyLocked(ctx context.Context, cm *chess.Move, byAgent bool) error {
	pos := e.game.Position()
	san := chess.AlgebraicNotation{}.Encode(pos, cm)
	color := pos.Turn()
	if err := e.game.PushMove(san, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, san, err)
	}
	e.plies++
	err := e.store.RecordMove(ctx, storage.Move{
		PositionID: e.id,
		Number:     e.plies,
		UCI:        chess.UCINotation{}.Encode(pos, cm),
		SAN:        san,
		Flags:      int(flagsFor(pos, cm)),
		Color:      color.String(),
		ByAgent:    byAgent,
	})
	if err != nil {
		e.log.Warn("failed to record move", "move", san, "error", err)
	}
	e.persistLocked(ctx)
	logging.Debugf("applied %s, now %s", san, e.game.FEN())
	return nil
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.store == nil {
		return
	}
	fen := e.game.FEN()
	hash, _ := e.hasher.HashPosition(fen)
	winner := winnerCode(e.game.Outcome())
	now := time.Now()
	err := e.store.SavePosition(ctx, e.id, storage.PositionUpdate{
		FEN:      &fen,
		Zobrist:  &hash,
		Winner:   &winner,
		LastSeen: &now,
	})
	if err != nil {
		e.log.Warn("failed to persist position", "id", e.id, "error", err)
	}
}
