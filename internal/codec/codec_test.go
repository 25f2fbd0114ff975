package codec

import (
	"errors"
	"testing"
)

func TestIndexRoundTripBothOrientations(t *testing.T) {
	for _, o := range []Orientation{Plain, Mirrored} {
		seen := make(map[int]bool)
		for row := 0; row < BoardSize; row++ {
			for col := 0; col < BoardSize; col++ {
				idx, err := ToIndex(row, col, o)
				if err != nil {
					t.Fatalf("%s: ToIndex(%d,%d): %v", o, row, col, err)
				}
				if seen[idx] {
					t.Fatalf("%s: index %d produced twice", o, idx)
				}
				seen[idx] = true
				r, c, err := FromIndex(idx, o)
				if err != nil {
					t.Fatalf("%s: FromIndex(%d): %v", o, idx, err)
				}
				if r != row || c != col {
					t.Fatalf("%s: round trip (%d,%d) -> %d -> (%d,%d)", o, row, col, idx, r, c)
				}
			}
		}
		if len(seen) != Squares {
			t.Fatalf("%s: expected %d indices, got %d", o, Squares, len(seen))
		}
	}
}

func TestMirroredReversesColumns(t *testing.T) {
	idx, _ := ToIndex(0, 0, Mirrored)
	if idx != 7 {
		t.Fatalf("expected 7, got %d", idx)
	}
	idx, _ = ToIndex(7, 7, Mirrored)
	if idx != 56 {
		t.Fatalf("expected 56, got %d", idx)
	}
}

func TestToIndexRejectsOutOfRange(t *testing.T) {
	cases := [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}}
	for _, c := range cases {
		_, err := ToIndex(c[0], c[1], Plain)
		var re *RangeError
		if !errors.As(err, &re) {
			t.Fatalf("ToIndex(%d,%d): expected RangeError, got %v", c[0], c[1], err)
		}
	}
	if _, _, err := FromIndex(64, Plain); err == nil {
		t.Fatalf("expected error for index 64")
	}
}

func TestDecodeFlagsTable(t *testing.T) {
	captures := map[int]bool{0x4: true, 0x5: true, 0xC: true, 0xD: true, 0xE: true, 0xF: true}
	for v := 0; v <= 0xF; v++ {
		d, err := DecodeFlags(v)
		if err != nil {
			t.Fatalf("DecodeFlags(%#x): %v", v, err)
		}
		if d.IsCapture != captures[v] {
			t.Fatalf("%#x: IsCapture=%v", v, d.IsCapture)
		}
		if d.IsPromotion != (v >= 0x8) {
			t.Fatalf("%#x: IsPromotion=%v", v, d.IsPromotion)
		}
		if d.IsEnPassant != (v == 0x5) {
			t.Fatalf("%#x: IsEnPassant=%v", v, d.IsEnPassant)
		}
		if d.IsCastle != (v == 0x2 || v == 0x3) {
			t.Fatalf("%#x: IsCastle=%v", v, d.IsCastle)
		}
		if Flags(v).IsCapture() != d.IsCapture || Flags(v).IsPromotion() != d.IsPromotion {
			t.Fatalf("%#x: method predicates disagree with DecodeFlags", v)
		}
		back, err := d.Encode()
		if err != nil {
			t.Fatalf("%#x: Encode: %v", v, err)
		}
		if int(back) != v {
			t.Fatalf("round trip %#x -> %#x", v, back)
		}
	}
}

func TestPromotionPieceOrder(t *testing.T) {
	want := []Promotion{PromoteKnight, PromoteBishop, PromoteRook, PromoteQueen}
	for i, p := range want {
		if d := MustDecode(KnightPromotion + Flags(i)); d.Promotion != p {
			t.Fatalf("%#x: got %v want %v", 0x8+i, d.Promotion, p)
		}
		if d := MustDecode(KnightPromotionCapture + Flags(i)); d.Promotion != p || d.Category != CategoryPromotionCapture {
			t.Fatalf("%#x: got %v/%v", 0xC+i, d.Promotion, d.Category)
		}
	}
}

func TestDecodeFlagsOutOfRange(t *testing.T) {
	for _, v := range []int{-1, 0x10, 255} {
		_, err := DecodeFlags(v)
		var fe *InvalidFlagsError
		if !errors.As(err, &fe) {
			t.Fatalf("DecodeFlags(%d): expected InvalidFlagsError, got %v", v, err)
		}
	}
}

func TestWithPromotionKeepsCapture(t *testing.T) {
	if got := KnightPromotionCapture.WithPromotion(PromoteQueen); got != QueenPromotionCapture {
		t.Fatalf("got %#x", got)
	}
	if got := BishopPromotion.WithPromotion(PromoteQueen); got != QueenPromotion {
		t.Fatalf("got %#x", got)
	}
	if got := Capture.WithPromotion(PromoteQueen); got != Capture {
		t.Fatalf("non-promotion flag changed: %#x", got)
	}
}

func TestPackMoveRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		from, to int
		f        Flags
	}{{52, 36, DoublePawnPush}, {0, 63, QueenPromotionCapture}, {60, 62, KingCastle}} {
		w, err := PackMove(tc.from, tc.to, tc.f)
		if err != nil {
			t.Fatalf("PackMove: %v", err)
		}
		from, to, f := UnpackMove(w)
		if from != tc.from || to != tc.to || f != tc.f {
			t.Fatalf("round trip %+v -> %d,%d,%#x", tc, from, to, f)
		}
	}
	if _, err := PackMove(64, 0, Normal); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestSquareNames(t *testing.T) {
	if n, _ := SquareName(0); n != "a8" {
		t.Fatalf("index 0 = %s", n)
	}
	if n, _ := SquareName(63); n != "h1" {
		t.Fatalf("index 63 = %s", n)
	}
	idx, err := ParseSquare("e2")
	if err != nil || idx != 52 {
		t.Fatalf("e2 = %d, %v", idx, err)
	}
	if got := MoveName(52, 36, DoublePawnPush); got != "e2e4" {
		t.Fatalf("MoveName = %s", got)
	}
	if got := MoveName(12, 4, QueenPromotion); got != "e7e8q" {
		t.Fatalf("MoveName = %s", got)
	}
}
