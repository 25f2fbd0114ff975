// Package protocol defines the JSON shapes exchanged with the chess authority.
package protocol

import (
	"fmt"

	"mateboard/internal/board"
	"mateboard/internal/codec"
)

// Authority endpoints.
const (
	PathBoard      = "/board"
	PathMove       = "/board/move/piece"
	PathLoadFEN    = "/board/load/fen"
	PathMoveCount  = "/board/moves/count"
	PathAgentMove  = "/ai/move"
	PathThinkTime  = "/ai/time_to_think"
	StartingFEN    = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	WinnerNone     = "-"
	WinnerWhite    = "w"
	WinnerBlack    = "b"
	WinnerDraw     = "d"
	emptyPieceCode = board.EmptyGlyph
)

// Move is a move on the wire.
type Move struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	Flags    int    `json:"flags"`
	Notation string `json:"notation,omitempty"`
}

// Piece is one board slot on the wire.
type Piece struct {
	FEN      string `json:"fen"`
	Position int    `json:"position"`
	White    bool   `json:"white"`
	Moves    []Move `json:"moves"`
}

// Board is the full snapshot the authority returns after every call.
type Board struct {
	Pieces           []Piece  `json:"pieces"`
	WhiteMove        bool     `json:"whiteMove"`
	WhiteKingInCheck bool     `json:"whiteKingInCheck"`
	BlackKingInCheck bool     `json:"blackKingInCheck"`
	WhiteCaptures    []string `json:"whiteCaptures"`
	BlackCaptures    []string `json:"blackCaptures"`
	Zobrist          uint64   `json:"zobrist"`
	Winner           string   `json:"winner"`
	Evaluation       float64  `json:"evaluation"`
	FEN              string   `json:"fen"`
}

// LoadFEN is the body of a load-position request.
type LoadFEN struct {
	FEN string `json:"fen"`
}

// AgentReply describes the move the remote agent chose.
type AgentReply struct {
	Depth      int     `json:"depth"`
	Duration   int64   `json:"duration"`
	Evaluation float64 `json:"evaluation"`
	AIMove     Move    `json:"aiMove"`
}

// ThinkTime sets the agent's time budget in seconds.
type ThinkTime struct {
	TimeToThink float64 `json:"time_to_think"`
}

// MoveCountRequest asks for a perft count at Depth.
type MoveCountRequest struct {
	Depth int `json:"depth"`
}

// MoveCount is the reply to MoveCountRequest. ElapsedTime is in milliseconds.
type MoveCount struct {
	Moves       uint64 `json:"moves"`
	ElapsedTime int64  `json:"elapsedTime"`
}

// Error is the body of a failed request.
type Error struct {
	Error string `json:"error"`
}

// ToBoard converts a wire move.
func (m Move) ToBoard() (board.Move, error) {
	if _, err := codec.DecodeFlags(m.Flags); err != nil {
		return board.Move{}, err
	}
	return board.Move{From: m.From, To: m.To, Flags: codec.Flags(m.Flags), Notation: m.Notation}, nil
}

// FromMove converts a board move to its wire form.
func FromMove(m board.Move) Move {
	return Move{From: m.From, To: m.To, Flags: int(m.Flags), Notation: m.Notation}
}

// Snapshot validates the wire board and builds a board snapshot from it.
func (b Board) Snapshot() (*board.Snapshot, error) {
	squares := make([]board.Piece, len(b.Pieces))
	for i, wp := range b.Pieces {
		color, typ, err := board.ParseGlyph(wp.FEN)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", board.ErrMalformedSnapshot, i, err)
		}
		if typ != board.Empty {
			// the glyph case and the white flag must agree
			if (color == board.White) != wp.White {
				return nil, fmt.Errorf("%w: slot %d: glyph %q with white=%v", board.ErrMalformedSnapshot, i, wp.FEN, wp.White)
			}
		}
		p := board.Piece{Color: color, Type: typ, Index: wp.Position, Glyph: board.GlyphKey(color, typ)}
		for _, wm := range wp.Moves {
			m, err := wm.ToBoard()
			if err != nil {
				return nil, fmt.Errorf("%w: slot %d: %v", board.ErrMalformedSnapshot, i, err)
			}
			p.Moves = append(p.Moves, m)
		}
		squares[i] = p
	}
	side := board.Black
	if b.WhiteMove {
		side = board.White
	}
	outcome, err := ParseWinner(b.Winner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", board.ErrMalformedSnapshot, err)
	}
	return board.New(board.Spec{
		Squares:       squares,
		SideToMove:    side,
		WhiteInCheck:  b.WhiteKingInCheck,
		BlackInCheck:  b.BlackKingInCheck,
		WhiteCaptured: b.WhiteCaptures,
		BlackCaptured: b.BlackCaptures,
		Hash:          b.Zobrist,
		Outcome:       outcome,
		Evaluation:    b.Evaluation,
		FEN:           b.FEN,
	})
}

// FromSnapshot converts a snapshot back to its wire form.
func FromSnapshot(s *board.Snapshot) Board {
	spec := s.Spec()
	out := Board{
		Pieces:           make([]Piece, 0, len(spec.Squares)),
		WhiteMove:        spec.SideToMove == board.White,
		WhiteKingInCheck: spec.WhiteInCheck,
		BlackKingInCheck: spec.BlackInCheck,
		WhiteCaptures:    nonNil(spec.WhiteCaptured),
		BlackCaptures:    nonNil(spec.BlackCaptured),
		Zobrist:          spec.Hash,
		Winner:           WinnerCode(spec.Outcome),
		Evaluation:       spec.Evaluation,
		FEN:              spec.FEN,
	}
	for _, p := range spec.Squares {
		wp := Piece{FEN: p.Glyph, Position: p.Index, White: p.Color == board.White, Moves: []Move{}}
		if p.IsEmpty() {
			wp.FEN = emptyPieceCode
			wp.White = false
		}
		for _, m := range p.Moves {
			wp.Moves = append(wp.Moves, FromMove(m))
		}
		out.Pieces = append(out.Pieces, wp)
	}
	return out
}

// ParseWinner maps the wire winner marker to an outcome.
func ParseWinner(w string) (board.Outcome, error) {
	switch w {
	case "", WinnerNone:
		return board.Ongoing, nil
	case WinnerWhite:
		return board.WhiteWon, nil
	case WinnerBlack:
		return board.BlackWon, nil
	case WinnerDraw:
		return board.Draw, nil
	}
	return board.Ongoing, fmt.Errorf("unknown winner %q", w)
}

// WinnerCode is the inverse of ParseWinner.
func WinnerCode(o board.Outcome) string {
	switch o {
	case board.WhiteWon:
		return WinnerWhite
	case board.BlackWon:
		return WinnerBlack
	case board.Draw:
		return WinnerDraw
	}
	return WinnerNone
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
