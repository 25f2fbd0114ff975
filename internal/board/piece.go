// Package board holds the board snapshot returned by the chess authority.
// A Snapshot is built once per server reply and never mutated afterwards.
package board

import (
	"fmt"
	"strings"

	"mateboard/internal/codec"
)

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "Black"
	}
	return "White"
}

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceType is the kind of piece on a square. Empty marks a vacant square.
type PieceType uint8

const (
	Empty PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var typeLetters = [...]byte{'.', 'p', 'n', 'b', 'r', 'q', 'k'}

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	}
	return "empty"
}

// PromotionType maps a codec promotion piece to a piece type.
func PromotionType(p codec.Promotion) PieceType {
	switch p {
	case codec.PromoteKnight:
		return Knight
	case codec.PromoteBishop:
		return Bishop
	case codec.PromoteRook:
		return Rook
	case codec.PromoteQueen:
		return Queen
	}
	return Empty
}

// EmptyGlyph is the glyph key of a vacant square.
const EmptyGlyph = "."

// GlyphKey returns the FEN letter used as the display key for a piece:
// upper case for White, lower case for Black, "." for an empty square.
func GlyphKey(c Color, t PieceType) string {
	if t == Empty || int(t) >= len(typeLetters) {
		return EmptyGlyph
	}
	s := string(typeLetters[t])
	if c == White {
		s = strings.ToUpper(s)
	}
	return s
}

// ParseGlyph is the inverse of GlyphKey.
func ParseGlyph(key string) (Color, PieceType, error) {
	if key == "" || key == EmptyGlyph {
		return White, Empty, nil
	}
	if len(key) != 1 {
		return White, Empty, fmt.Errorf("board: bad glyph %q", key)
	}
	ch := key[0]
	c := Black
	if ch >= 'A' && ch <= 'Z' {
		c = White
		ch += 'a' - 'A'
	}
	for t, l := range typeLetters {
		if t > 0 && l == ch {
			return c, PieceType(t), nil
		}
	}
	return White, Empty, fmt.Errorf("board: bad glyph %q", key)
}

// Move is a move the authority has declared legal, or one the client submits.
type Move struct {
	From     int
	To       int
	Flags    codec.Flags
	Notation string
}

// Decode classifies the move flags.
func (m Move) Decode() (codec.Decoded, error) {
	return codec.DecodeFlags(int(m.Flags))
}

func (m Move) String() string {
	if m.Notation != "" {
		return m.Notation
	}
	return codec.MoveName(m.From, m.To, m.Flags)
}

// Piece is the content of one square. Empty pieces are placeholders and
// carry no moves.
type Piece struct {
	Color Color
	Type  PieceType
	Index int
	Glyph string
	Moves []Move
}

// IsEmpty reports whether the square is vacant.
func (p Piece) IsEmpty() bool {
	return p.Type == Empty
}

// MovesTo returns the legal moves of p that land on index, in server order.
func (p Piece) MovesTo(index int) []Move {
	var out []Move
	for _, m := range p.Moves {
		if m.To == index {
			out = append(out, m)
		}
	}
	return out
}

// HasDestination reports whether index is one of p's legal destinations.
func (p Piece) HasDestination(index int) bool {
	for _, m := range p.Moves {
		if m.To == index {
			return true
		}
	}
	return false
}

func (p Piece) clone() Piece {
	if p.Moves != nil {
		p.Moves = append([]Move(nil), p.Moves...)
	}
	return p
}
