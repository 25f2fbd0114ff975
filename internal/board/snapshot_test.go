package board

import (
	"errors"
	"testing"

	"mateboard/internal/codec"

	"github.com/google/go-cmp/cmp"
)

func emptySquares() []Piece {
	sq := make([]Piece, codec.Squares)
	for i := range sq {
		sq[i] = Piece{Index: i}
	}
	return sq
}

func TestNewRejectsWrongSlotCount(t *testing.T) {
	_, err := New(Spec{Squares: make([]Piece, 63)})
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
}

func TestNewRejectsIndexMismatch(t *testing.T) {
	sq := emptySquares()
	sq[5].Index = 6
	if _, err := New(Spec{Squares: sq}); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
}

func TestNewRejectsBadMoves(t *testing.T) {
	sq := emptySquares()
	sq[52] = Piece{Index: 52, Type: Pawn, Moves: []Move{{From: 52, To: 36, Flags: 0x10}}}
	if _, err := New(Spec{Squares: sq}); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected flags error, got %v", err)
	}
	sq[52].Moves = []Move{{From: 51, To: 36}}
	if _, err := New(Spec{Squares: sq}); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected source mismatch error, got %v", err)
	}
	sq[52] = Piece{Index: 52, Moves: []Move{{From: 52, To: 44}}}
	if _, err := New(Spec{Squares: sq}); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected empty-with-moves error, got %v", err)
	}
}

func TestSnapshotIsIsolatedFromSpec(t *testing.T) {
	sq := emptySquares()
	sq[52] = Piece{Index: 52, Type: Pawn, Moves: []Move{{From: 52, To: 44}}}
	caps := []string{"p"}
	s, err := New(Spec{Squares: sq, WhiteCaptured: caps})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sq[52].Moves[0].To = 36
	caps[0] = "q"
	if got := s.Piece(52).Moves[0].To; got != 44 {
		t.Fatalf("snapshot moved with its spec: %d", got)
	}
	if diff := cmp.Diff([]string{"p"}, s.Captured(White)); diff != "" {
		t.Fatalf("captures changed (-want +got):\n%s", diff)
	}
	p := s.Piece(52)
	p.Moves[0].To = 20
	if s.Piece(52).Moves[0].To != 44 {
		t.Fatalf("accessor leaked internal slice")
	}
}

func TestGlyphKeys(t *testing.T) {
	if GlyphKey(White, Knight) != "N" || GlyphKey(Black, Queen) != "q" || GlyphKey(White, Empty) != "." {
		t.Fatalf("unexpected glyph keys")
	}
	c, typ, err := ParseGlyph("K")
	if err != nil || c != White || typ != King {
		t.Fatalf("ParseGlyph(K) = %v %v %v", c, typ, err)
	}
	if _, _, err := ParseGlyph("x"); err == nil {
		t.Fatalf("expected error for x")
	}
}

func TestBlankSnapshot(t *testing.T) {
	s := Blank()
	if s.Occupied() != 0 || s.SideToMove() != White || s.Outcome() != Ongoing {
		t.Fatalf("unexpected blank snapshot")
	}
	if len(s.Pieces()) != codec.Squares {
		t.Fatalf("blank snapshot must hold 64 slots")
	}
}

func TestStatusMessage(t *testing.T) {
	s, _ := New(Spec{Squares: emptySquares(), Evaluation: 0.35})
	if got := s.StatusMessage(); got != "Evaluation: +0.35" {
		t.Fatalf("got %q", got)
	}
	s, _ = New(Spec{Squares: emptySquares(), Outcome: BlackWon})
	if got := s.StatusMessage(); got != "Black wins" {
		t.Fatalf("got %q", got)
	}
}
