package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mateboard/internal/authority"
	"mateboard/internal/board"
	"mateboard/internal/codec"
	"mateboard/internal/gateway"
	"mateboard/internal/protocol"
	"mateboard/internal/selection"
)

func newLive(t *testing.T, opts ...Option) (*Controller, *authority.Engine) {
	t.Helper()
	e := authority.NewEngine(authority.WithDepth(2), authority.WithThinkTime(500*time.Millisecond))
	srv := httptest.NewServer(authority.NewServer(e, false))
	t.Cleanup(srv.Close)
	c := New(gateway.New(srv.URL), opts...)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return c, e
}

// stub fails or blocks on demand and records submitted moves.
type stub struct {
	mu      sync.Mutex
	snap    *board.Snapshot
	moveErr error
	block   chan struct{}
	moves   []board.Move
}

func (s *stub) Board(ctx context.Context) (*board.Snapshot, error) { return s.snap, nil }

func (s *stub) Move(ctx context.Context, m board.Move) (*board.Snapshot, error) {
	s.mu.Lock()
	s.moves = append(s.moves, m)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if s.moveErr != nil {
		return nil, s.moveErr
	}
	return s.snap, nil
}

func (s *stub) LoadPosition(ctx context.Context, fen string) (*board.Snapshot, error) {
	return s.snap, nil
}

func (s *stub) AgentMove(ctx context.Context) (gateway.AgentReply, error) {
	return gateway.AgentReply{}, gateway.ErrNetworkFailure
}

func (s *stub) SetThinkTime(ctx context.Context, d time.Duration) error { return nil }

func (s *stub) CountMoves(ctx context.Context, depth int) (gateway.MoveCount, error) {
	return gateway.MoveCount{}, nil
}

// white pawn on a7 (8) with all four promotions to a8 (0); black king h8 (7).
func promotionSnapshot(t *testing.T) *board.Snapshot {
	t.Helper()
	sq := make([]board.Piece, codec.Squares)
	for i := range sq {
		sq[i] = board.Piece{Index: i}
	}
	var moves []board.Move
	for _, f := range []codec.Flags{codec.KnightPromotion, codec.BishopPromotion, codec.RookPromotion, codec.QueenPromotion} {
		moves = append(moves, board.Move{From: 8, To: 0, Flags: f})
	}
	sq[8] = board.Piece{Index: 8, Color: board.White, Type: board.Pawn, Moves: moves}
	sq[7] = board.Piece{Index: 7, Color: board.Black, Type: board.King}
	sq[63] = board.Piece{Index: 63, Color: board.White, Type: board.King}
	s, err := board.New(board.Spec{Squares: sq, SideToMove: board.White})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	return s
}

func TestDoublePawnPushEndToEnd(t *testing.T) {
	c, _ := newLive(t)
	ctx := context.Background()

	r, err := c.Activate(ctx, 52)
	if err != nil || r.Action != Selected {
		t.Fatalf("select e2: %v %v", r.Action, err)
	}
	r, err = c.Activate(ctx, 36)
	if err != nil {
		t.Fatalf("move e2e4: %v", err)
	}
	if r.Action != Moved || r.Move.Flags != codec.DoublePawnPush || r.Change.To != selection.AwaitingServer {
		t.Fatalf("unexpected result %+v", r)
	}
	v := c.View()
	if v.State != selection.Idle || v.Selected != selection.None {
		t.Fatalf("state=%v selected=%d", v.State, v.Selected)
	}
	if v.Board.SideToMove() != board.Black || v.Board.Piece(36).Type != board.Pawn {
		t.Fatalf("snapshot not replaced")
	}
	if v.LastMove == nil || v.LastMove.From != 52 || v.LastMove.To != 36 {
		t.Fatalf("last move = %+v", v.LastMove)
	}
}

func TestRejectedMoveRollsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == protocol.PathMove {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		authority.NewServer(authority.NewEngine(), false).ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := New(gateway.New(srv.URL))
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := c.Snapshot()

	if _, err := c.Activate(ctx, 52); err != nil {
		t.Fatalf("select: %v", err)
	}
	r, err := c.Activate(ctx, 36)
	if !errors.Is(err, gateway.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
	if r.Action != RolledBack || r.Move.Flags != codec.DoublePawnPush {
		t.Fatalf("unexpected result %+v", r)
	}
	v := c.View()
	if v.Board != before || v.State != selection.Idle || v.Selected != selection.None {
		t.Fatalf("rollback failed: state=%v selected=%d", v.State, v.Selected)
	}
	if v.Board.Piece(52).Type != board.Pawn || v.Board.Piece(36).Type != board.Empty {
		t.Fatalf("snapshot shows the rejected move")
	}
	if v.Notice == "" {
		t.Fatalf("no notice after rollback")
	}
}

func TestTimeoutRollsBack(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == protocol.PathMove {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		authority.NewServer(authority.NewEngine(), false).ServeHTTP(w, r)
	}))
	defer srv.Close()
	defer close(release)

	c := New(gateway.New(srv.URL, gateway.WithTimeout(100*time.Millisecond)))
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	_, _ = c.Activate(ctx, 52)
	r, err := c.Activate(ctx, 36)
	if !errors.Is(err, gateway.ErrNetworkTimeout) || r.Action != RolledBack {
		t.Fatalf("expected timeout rollback, got %v %v", r.Action, err)
	}
	if c.View().State != selection.Idle {
		t.Fatalf("lockout not released")
	}
}

func TestInputIgnoredWhileAwaiting(t *testing.T) {
	snap := promotionSnapshot(t)
	gw := &stub{snap: snap, block: make(chan struct{})}
	c := New(gw)
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	_, _ = c.Activate(ctx, 8)
	done := make(chan Result)
	go func() {
		r, _ := c.Activate(ctx, 0)
		done <- r
	}()
	deadline := time.Now().Add(2 * time.Second)
	for c.View().State != selection.AwaitingServer {
		if time.Now().After(deadline) {
			t.Fatalf("never entered AwaitingServer")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, idx := range []int{8, 63, 7, 30} {
		r, err := c.Activate(ctx, idx)
		if !errors.Is(err, selection.ErrAwaitingServer) || r.Action != Ignored {
			t.Fatalf("cell %d: %v %v", idx, r.Action, err)
		}
	}
	if err := c.LoadPosition(ctx, ""); !errors.Is(err, selection.ErrAwaitingServer) {
		t.Fatalf("LoadPosition while awaiting: %v", err)
	}
	if v := c.View(); v.Board != snap || v.Selected != selection.None {
		t.Fatalf("state changed while awaiting")
	}

	close(gw.block)
	if r := <-done; r.Action != Moved {
		t.Fatalf("move result %v", r.Action)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	gw := &stub{snap: promotionSnapshot(t)}
	c := New(gw)
	ctx := context.Background()
	_ = c.Refresh(ctx)

	_, _ = c.Activate(ctx, 8)
	r, err := c.Activate(ctx, 0)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if r.Move.Flags != codec.QueenPromotion || len(gw.moves) != 1 || gw.moves[0].Flags != codec.QueenPromotion {
		t.Fatalf("submitted %+v", gw.moves)
	}
}

func TestChooseMoveUpgradesPromotion(t *testing.T) {
	m := chooseMove([]board.Move{{From: 9, To: 0, Flags: codec.KnightPromotionCapture}})
	if m.Flags != codec.QueenPromotionCapture {
		t.Fatalf("flags = %v", m.Flags)
	}
	m = chooseMove([]board.Move{{From: 52, To: 36, Flags: codec.DoublePawnPush}})
	if m.Flags != codec.DoublePawnPush {
		t.Fatalf("flags = %v", m.Flags)
	}
}

func TestOpponentAndIllegalClicks(t *testing.T) {
	c, _ := newLive(t)
	ctx := context.Background()

	r, err := c.Activate(ctx, 12)
	if !errors.Is(err, selection.ErrNotYourTurn) || r.Action != Rejected {
		t.Fatalf("opponent click: %v %v", r.Action, err)
	}
	if c.View().Notice != "Not your turn" {
		t.Fatalf("notice = %q", c.View().Notice)
	}

	if _, err := c.Activate(ctx, 36); !errors.Is(err, selection.ErrEmptySquare) {
		t.Fatalf("expected ErrEmptySquare, got %v", err)
	}
	if c.View().Notice != "Empty square" {
		t.Fatalf("empty square notice = %q", c.View().Notice)
	}

	_, _ = c.Activate(ctx, 52)
	before := c.Snapshot()
	if _, err := c.Activate(ctx, 28); !errors.Is(err, selection.ErrIllegalDestination) {
		t.Fatalf("expected ErrIllegalDestination, got %v", err)
	}
	if c.View().Notice != "" {
		t.Fatalf("illegal destination notice = %q", c.View().Notice)
	}
	if _, err := c.Activate(ctx, 12); !errors.Is(err, selection.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if c.View().Notice != "Not your turn" {
		t.Fatalf("opponent click with a selection: notice = %q", c.View().Notice)
	}
	v := c.View()
	if v.Selected != 52 || v.State != selection.PieceSelected || v.Board != before {
		t.Fatalf("state changed: %v/%d", v.State, v.Selected)
	}

	r, err = c.Activate(ctx, 52)
	if err != nil || r.Action != Deselected || c.View().State != selection.Idle {
		t.Fatalf("toggle off: %v %v", r.Action, err)
	}
	if _, err := c.Activate(ctx, 64); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestLoadStartingPosition(t *testing.T) {
	c, _ := newLive(t)
	ctx := context.Background()
	_, _ = c.Activate(ctx, 52)
	_, _ = c.Activate(ctx, 36)

	if err := c.LoadPosition(ctx, protocol.StartingFEN); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	s := c.Snapshot()
	if s.Occupied() != 32 || s.SideToMove() != board.White || s.Outcome() != board.Ongoing {
		t.Fatalf("occupied=%d side=%v outcome=%v", s.Occupied(), s.SideToMove(), s.Outcome())
	}
	if c.View().LastMove != nil {
		t.Fatalf("last move kept after load")
	}
}

func TestRequestAgentMove(t *testing.T) {
	c, _ := newLive(t)
	ctx := context.Background()
	reply, err := c.RequestAgentMove(ctx)
	if err != nil {
		t.Fatalf("RequestAgentMove: %v", err)
	}
	v := c.View()
	if v.Board.SideToMove() != board.Black || v.Agent == nil || v.LastMove == nil || *v.LastMove != reply.Move {
		t.Fatalf("agent move not reflected: %+v", v)
	}
	if v.State != selection.Idle {
		t.Fatalf("state = %v", v.State)
	}
}

func TestAutoAgentReplies(t *testing.T) {
	var notified int
	var mu sync.Mutex
	c, _ := newLive(t, WithAutoAgent(board.Black), WithNotify(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	}))
	ctx := context.Background()
	_, _ = c.Activate(ctx, 52)
	if _, err := c.Activate(ctx, 36); err != nil {
		t.Fatalf("move: %v", err)
	}
	v := c.View()
	if v.Board.SideToMove() != board.White || v.Agent == nil || v.State != selection.Idle {
		t.Fatalf("agent did not reply: side=%v agent=%v state=%v", v.Board.SideToMove(), v.Agent, v.State)
	}
	mu.Lock()
	defer mu.Unlock()
	if notified < 3 {
		t.Fatalf("notify called %d times", notified)
	}
}

func TestCountMovesAndThinkTime(t *testing.T) {
	c, _ := newLive(t)
	ctx := context.Background()
	n, err := c.CountMoves(ctx, 2)
	if err != nil || n.Moves != 400 {
		t.Fatalf("CountMoves = %+v, %v", n, err)
	}
	if _, err := c.CountMoves(ctx, 0); err == nil {
		t.Fatalf("expected error for depth 0")
	}
	if err := c.SetThinkTime(ctx, time.Second); err != nil {
		t.Fatalf("SetThinkTime: %v", err)
	}
	if err := c.SetThinkTime(ctx, 0); err == nil {
		t.Fatalf("expected error for zero think time")
	}
}

func TestSyncPicksUpOutsideMoves(t *testing.T) {
	var notified int
	c, e := newLive(t, WithNotify(func() { notified++ }))
	ctx := context.Background()
	notified = 0

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if notified != 0 {
		t.Fatalf("unchanged board notified %d times", notified)
	}

	if _, err := c.Activate(ctx, 62); err != nil {
		t.Fatalf("select knight: %v", err)
	}
	if _, err := e.Move(ctx, protocol.Move{From: 52, To: 36, Flags: int(codec.DoublePawnPush)}); err != nil {
		t.Fatalf("outside move: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	v := c.View()
	if v.Board.SideToMove() != board.Black || v.Board.Piece(36).Type != board.Pawn {
		t.Fatalf("outside move not picked up")
	}
	if v.State != selection.Idle || v.Selected != selection.None {
		t.Fatalf("stale selection kept: %v %d", v.State, v.Selected)
	}
}
