package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mateboard/internal/board"
	"mateboard/internal/codec"
	"mateboard/internal/controller"
	"mateboard/internal/gateway"
	"mateboard/internal/selection"
)

// White knight g1 (62) can reach f3 (45) and capture on h3 (47); black pawn
// on h3; White king e1 (60) in check.
func snapshot(t *testing.T) *board.Snapshot {
	t.Helper()
	sq := make([]board.Piece, codec.Squares)
	for i := range sq {
		sq[i] = board.Piece{Index: i}
	}
	sq[62] = board.Piece{Index: 62, Color: board.White, Type: board.Knight, Moves: []board.Move{
		{From: 62, To: 45}, {From: 62, To: 47, Flags: codec.Capture},
	}}
	sq[47] = board.Piece{Index: 47, Color: board.Black, Type: board.Pawn}
	sq[60] = board.Piece{Index: 60, Color: board.White, Type: board.King}
	sq[4] = board.Piece{Index: 4, Color: board.Black, Type: board.King}
	s, err := board.New(board.Spec{
		Squares:       sq,
		SideToMove:    board.White,
		WhiteInCheck:  true,
		WhiteCaptured: []string{"q"},
		Hash:          0xabc,
		Evaluation:    1.5,
	})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	return s
}

func cell(t *testing.T, b Board, index int) Cell {
	t.Helper()
	c, ok := b.Cell(index)
	if !ok {
		t.Fatalf("no cell %d", index)
	}
	return c
}

func TestReceptorsFollowSelection(t *testing.T) {
	b := Build(controller.View{Board: snapshot(t), State: selection.PieceSelected, Selected: 62})
	if !cell(t, b, 62).Has(ClassSelected) {
		t.Fatalf("selected class missing")
	}
	if !cell(t, b, 45).Has(ClassEmptyReceptor) {
		t.Fatalf("f3 should be an empty receptor: %v", cell(t, b, 45).Classes)
	}
	h3 := cell(t, b, 47)
	if !h3.Has(ClassCaptureReceptor) || h3.Has(ClassDisabled) {
		t.Fatalf("h3 classes = %v", h3.Classes)
	}
	if !cell(t, b, 4).Has(ClassDisabled) {
		t.Fatalf("opponent king should be disabled")
	}

	idle := Build(controller.View{Board: snapshot(t), State: selection.Idle, Selected: selection.None})
	for _, row := range idle.Rows {
		for _, c := range row {
			if c.Has(ClassSelected) || c.Has(ClassEmptyReceptor) || c.Has(ClassCaptureReceptor) {
				t.Fatalf("cell %d has a selection class while idle: %v", c.Index, c.Classes)
			}
		}
	}
}

func TestAwaitingDisablesEverything(t *testing.T) {
	b := Build(controller.View{Board: snapshot(t), State: selection.AwaitingServer, Selected: selection.None})
	if !b.Awaiting {
		t.Fatalf("awaiting not reported")
	}
	for _, row := range b.Rows {
		for _, c := range row {
			if !c.Has(ClassDisabled) {
				t.Fatalf("cell %d enabled while awaiting", c.Index)
			}
		}
	}
}

func TestStatusFields(t *testing.T) {
	mv := board.Move{From: 12, To: 28, Flags: codec.DoublePawnPush, Notation: "e5"}
	b := Build(controller.View{
		Board:    snapshot(t),
		Selected: selection.None,
		LastMove: &mv,
		Agent:    &gateway.AgentReply{Depth: 3, Move: mv, Evaluation: -0.5},
		Notice:   "Not your turn",
	})
	if !cell(t, b, 60).Has(ClassInCheck) || !b.WhiteInCheck || b.BlackInCheck {
		t.Fatalf("check not shown")
	}
	if !cell(t, b, 12).Has(ClassLastMove) || !cell(t, b, 28).Has(ClassLastMove) {
		t.Fatalf("last move not marked")
	}
	if b.Status != "Evaluation: +1.50" || b.Hash != "0000000000000abc" {
		t.Fatalf("status=%q hash=%q", b.Status, b.Hash)
	}
	if diff := cmp.Diff([]string{"♛"}, b.WhiteTray); diff != "" {
		t.Fatalf("white tray (-want +got):\n%s", diff)
	}
	if b.LastMove != "e5" || !strings.HasPrefix(b.Agent, "e5 (depth 3") || b.Notice != "Not your turn" {
		t.Fatalf("labels: last=%q agent=%q notice=%q", b.LastMove, b.Agent, b.Notice)
	}
}

func TestMirroredOrientation(t *testing.T) {
	b := Build(controller.View{Board: snapshot(t), Selected: selection.None, Orientation: codec.Mirrored})
	if b.Rows[0][0].Index != 7 || b.Rows[7][7].Index != 56 {
		t.Fatalf("corner indices %d %d", b.Rows[0][0].Index, b.Rows[7][7].Index)
	}
	if b.Rows[0][0].Name != "h8" {
		t.Fatalf("top-left name %q", b.Rows[0][0].Name)
	}
}

func TestText(t *testing.T) {
	b := Build(controller.View{Board: snapshot(t), State: selection.PieceSelected, Selected: 62})
	out := Text(b)
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "8 ") || !strings.HasPrefix(lines[8], "  a b c d e f g h") {
		t.Fatalf("unexpected diagram:\n%s", out)
	}
	if !strings.Contains(lines[7], "N*") || !strings.Contains(lines[5], "px") {
		t.Fatalf("markers missing:\n%s", out)
	}
	if !strings.Contains(out, "White to move.") {
		t.Fatalf("status line missing:\n%s", out)
	}
}

func TestNilBoardRendersBlank(t *testing.T) {
	b := Build(controller.View{Selected: selection.None})
	if len(b.Rows) != codec.BoardSize || cell(t, b, 0).Symbol != "" {
		t.Fatalf("blank render failed")
	}
}
