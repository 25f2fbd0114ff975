package board

import (
	"errors"
	"fmt"

	"mateboard/internal/codec"
)

// ErrMalformedSnapshot is returned when server data breaks the snapshot
// invariants (64 slots, one piece per index, valid moves).
var ErrMalformedSnapshot = errors.New("malformed board snapshot")

// Outcome is the terminal state of the game.
type Outcome uint8

const (
	Ongoing Outcome = iota
	Draw
	WhiteWon
	BlackWon
)

func (o Outcome) String() string {
	switch o {
	case Draw:
		return "Draw"
	case WhiteWon:
		return "White wins"
	case BlackWon:
		return "Black wins"
	}
	return "Ongoing"
}

// Spec is the raw material for a Snapshot.
type Spec struct {
	Squares       []Piece
	SideToMove    Color
	WhiteInCheck  bool
	BlackInCheck  bool
	WhiteCaptured []string
	BlackCaptured []string
	Hash          uint64
	Outcome       Outcome
	Evaluation    float64
	FEN           string
}

// Snapshot is one authoritative board state. Its fields are only reachable
// through accessors that return copies, so a Snapshot never changes after New.
type Snapshot struct {
	squares       [codec.Squares]Piece
	sideToMove    Color
	whiteInCheck  bool
	blackInCheck  bool
	whiteCaptured []string
	blackCaptured []string
	hash          uint64
	outcome       Outcome
	evaluation    float64
	fen           string
}

// New validates spec and freezes it into a Snapshot.
func New(spec Spec) (*Snapshot, error) {
	if len(spec.Squares) != codec.Squares {
		return nil, fmt.Errorf("%w: %d squares", ErrMalformedSnapshot, len(spec.Squares))
	}
	s := &Snapshot{
		sideToMove:    spec.SideToMove,
		whiteInCheck:  spec.WhiteInCheck,
		blackInCheck:  spec.BlackInCheck,
		whiteCaptured: append([]string(nil), spec.WhiteCaptured...),
		blackCaptured: append([]string(nil), spec.BlackCaptured...),
		hash:          spec.Hash,
		outcome:       spec.Outcome,
		evaluation:    spec.Evaluation,
		fen:           spec.FEN,
	}
	for i, p := range spec.Squares {
		if p.Index != i {
			return nil, fmt.Errorf("%w: slot %d holds index %d", ErrMalformedSnapshot, i, p.Index)
		}
		if p.IsEmpty() && len(p.Moves) > 0 {
			return nil, fmt.Errorf("%w: empty square %d has moves", ErrMalformedSnapshot, i)
		}
		for _, m := range p.Moves {
			if m.From != i || !codec.ValidIndex(m.To) {
				return nil, fmt.Errorf("%w: square %d has move %d->%d", ErrMalformedSnapshot, i, m.From, m.To)
			}
			if _, err := m.Decode(); err != nil {
				return nil, fmt.Errorf("%w: square %d: %v", ErrMalformedSnapshot, i, err)
			}
		}
		if p.Glyph == "" {
			p.Glyph = GlyphKey(p.Color, p.Type)
		}
		s.squares[i] = p.clone()
	}
	return s, nil
}

// Blank returns an empty board with White to move, used before the first fetch.
func Blank() *Snapshot {
	s := &Snapshot{}
	for i := range s.squares {
		s.squares[i] = Piece{Index: i, Glyph: EmptyGlyph}
	}
	return s
}

// Piece returns the piece at index. Out-of-range indices yield an empty piece.
func (s *Snapshot) Piece(index int) Piece {
	if !codec.ValidIndex(index) {
		return Piece{Index: index, Glyph: EmptyGlyph}
	}
	return s.squares[index].clone()
}

// Pieces returns all 64 slots in index order.
func (s *Snapshot) Pieces() []Piece {
	out := make([]Piece, 0, codec.Squares)
	for _, p := range s.squares {
		out = append(out, p.clone())
	}
	return out
}

// Occupied counts the non-empty squares.
func (s *Snapshot) Occupied() int {
	n := 0
	for _, p := range s.squares {
		if !p.IsEmpty() {
			n++
		}
	}
	return n
}

func (s *Snapshot) SideToMove() Color { return s.sideToMove }

// InCheck reports whether the king of color c is in check.
func (s *Snapshot) InCheck(c Color) bool {
	if c == White {
		return s.whiteInCheck
	}
	return s.blackInCheck
}

// Captured returns the glyph keys of the pieces captured by color c.
func (s *Snapshot) Captured(c Color) []string {
	if c == White {
		return append([]string(nil), s.whiteCaptured...)
	}
	return append([]string(nil), s.blackCaptured...)
}

func (s *Snapshot) Hash() uint64        { return s.hash }
func (s *Snapshot) Outcome() Outcome    { return s.outcome }
func (s *Snapshot) Evaluation() float64 { return s.evaluation }
func (s *Snapshot) FEN() string         { return s.fen }

// KingIndex returns the square of c's king, or -1.
func (s *Snapshot) KingIndex(c Color) int {
	for i, p := range s.squares {
		if p.Type == King && p.Color == c {
			return i
		}
	}
	return -1
}

// Spec returns a copy of the snapshot's contents.
func (s *Snapshot) Spec() Spec {
	return Spec{
		Squares:       s.Pieces(),
		SideToMove:    s.sideToMove,
		WhiteInCheck:  s.whiteInCheck,
		BlackInCheck:  s.blackInCheck,
		WhiteCaptured: s.Captured(White),
		BlackCaptured: s.Captured(Black),
		Hash:          s.hash,
		Outcome:       s.outcome,
		Evaluation:    s.evaluation,
		FEN:           s.fen,
	}
}

// StatusMessage is the one-line result or evaluation shown under the board.
func (s *Snapshot) StatusMessage() string {
	if s.outcome != Ongoing {
		return s.outcome.String()
	}
	return fmt.Sprintf("Evaluation: %+.2f", s.evaluation)
}
