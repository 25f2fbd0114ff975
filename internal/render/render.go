// Package render turns controller state into a display model. Every cell
// affordance is derived from the selection state on each call; nothing is
// toggled in place.
package render

import (
	"fmt"
	"strings"

	"mateboard/internal/board"
	"mateboard/internal/codec"
	"mateboard/internal/controller"
	"mateboard/internal/selection"
)

// Cell classes.
const (
	ClassLight           = "light"
	ClassDark            = "dark"
	ClassSelected        = "selected"
	ClassEmptyReceptor   = "empty-receptor"
	ClassCaptureReceptor = "capture-receptor"
	ClassDisabled        = "disabled"
	ClassInCheck         = "in-check"
	ClassLastMove        = "last-move"
)

var symbols = map[string]string{
	"K": "♔", "Q": "♕", "R": "♖", "B": "♗", "N": "♘", "P": "♙",
	"k": "♚", "q": "♛", "r": "♜", "b": "♝", "n": "♞", "p": "♟",
}

// Symbol returns the chess symbol for a glyph key, or "" for an empty square.
func Symbol(glyph string) string {
	return symbols[glyph]
}

// Cell is one square in display order.
type Cell struct {
	Index   int      `json:"index"`
	Row     int      `json:"row"`
	Column  int      `json:"column"`
	Name    string   `json:"name"`
	Glyph   string   `json:"glyph"`
	Symbol  string   `json:"symbol"`
	Classes []string `json:"classes"`
}

// Has reports whether the cell carries class.
func (c Cell) Has(class string) bool {
	for _, k := range c.Classes {
		if k == class {
			return true
		}
	}
	return false
}

// Board is the full display model.
type Board struct {
	Rows         [][]Cell `json:"rows"`
	SideToMove   string   `json:"sideToMove"`
	Awaiting     bool     `json:"awaiting"`
	Selected     int      `json:"selected"`
	WhiteInCheck bool     `json:"whiteInCheck"`
	BlackInCheck bool     `json:"blackInCheck"`
	WhiteTray    []string `json:"whiteTray"`
	BlackTray    []string `json:"blackTray"`
	Status       string   `json:"status"`
	Hash         string   `json:"hash"`
	FEN          string   `json:"fen"`
	LastMove     string   `json:"lastMove,omitempty"`
	Agent        string   `json:"agent,omitempty"`
	Notice       string   `json:"notice,omitempty"`
	Orientation  string   `json:"orientation"`
}

// Cell returns the display cell for a board index.
func (b Board) Cell(index int) (Cell, bool) {
	for _, row := range b.Rows {
		for _, c := range row {
			if c.Index == index {
				return c, true
			}
		}
	}
	return Cell{}, false
}

// Build derives the display model from v.
func Build(v controller.View) Board {
	snap := v.Board
	if snap == nil {
		snap = board.Blank()
	}
	awaiting := v.State == selection.AwaitingServer

	// destinations of the selected piece, by index
	receptors := map[int]bool{}
	if v.State == selection.PieceSelected && v.Selected != selection.None {
		for _, m := range snap.Piece(v.Selected).Moves {
			receptors[m.To] = receptors[m.To] || m.Flags.IsCapture()
		}
	}
	checked := map[int]bool{}
	for _, c := range []board.Color{board.White, board.Black} {
		if snap.InCheck(c) {
			if k := snap.KingIndex(c); k >= 0 {
				checked[k] = true
			}
		}
	}
	last := map[int]bool{}
	if v.LastMove != nil {
		last[v.LastMove.From] = true
		last[v.LastMove.To] = true
	}

	out := Board{
		Rows:         make([][]Cell, codec.BoardSize),
		SideToMove:   snap.SideToMove().String(),
		Awaiting:     awaiting,
		Selected:     v.Selected,
		WhiteInCheck: snap.InCheck(board.White),
		BlackInCheck: snap.InCheck(board.Black),
		WhiteTray:    symbolsOf(snap.Captured(board.White)),
		BlackTray:    symbolsOf(snap.Captured(board.Black)),
		Status:       snap.StatusMessage(),
		Hash:         fmt.Sprintf("%016x", snap.Hash()),
		FEN:          snap.FEN(),
		Notice:       v.Notice,
		Orientation:  v.Orientation.String(),
	}
	if v.LastMove != nil {
		out.LastMove = moveLabel(*v.LastMove)
	}
	if v.Agent != nil {
		out.Agent = fmt.Sprintf("%s (depth %d, %s, eval %+.2f)",
			moveLabel(v.Agent.Move), v.Agent.Depth, v.Agent.Duration, v.Agent.Evaluation)
	}

	for row := 0; row < codec.BoardSize; row++ {
		out.Rows[row] = make([]Cell, codec.BoardSize)
		for col := 0; col < codec.BoardSize; col++ {
			idx, _ := codec.ToIndex(row, col, v.Orientation)
			p := snap.Piece(idx)
			name, _ := codec.SquareName(idx)
			c := Cell{Index: idx, Row: row, Column: col, Name: name, Glyph: p.Glyph, Symbol: Symbol(p.Glyph)}
			// shading follows the square, not the display position
			sr, sc := idx/codec.BoardSize, idx%codec.BoardSize
			if (sr+sc)%2 == 0 {
				c.Classes = append(c.Classes, ClassLight)
			} else {
				c.Classes = append(c.Classes, ClassDark)
			}
			capture, isReceptor := receptors[idx]
			switch {
			case idx == v.Selected && v.State == selection.PieceSelected:
				c.Classes = append(c.Classes, ClassSelected)
			case isReceptor && (capture || !p.IsEmpty()):
				c.Classes = append(c.Classes, ClassCaptureReceptor)
			case isReceptor:
				c.Classes = append(c.Classes, ClassEmptyReceptor)
			}
			if awaiting || (!isReceptor && !p.IsEmpty() && p.Color != snap.SideToMove()) {
				c.Classes = append(c.Classes, ClassDisabled)
			}
			if checked[idx] {
				c.Classes = append(c.Classes, ClassInCheck)
			}
			if last[idx] {
				c.Classes = append(c.Classes, ClassLastMove)
			}
			out.Rows[row][col] = c
		}
	}
	return out
}

func symbolsOf(glyphs []string) []string {
	out := make([]string, 0, len(glyphs))
	for _, g := range glyphs {
		if s := Symbol(g); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func moveLabel(m board.Move) string {
	if m.Notation != "" {
		return m.Notation
	}
	return m.String()
}

// Text draws b as a plain-text diagram with rank and file labels.
func Text(b Board) string {
	var sb strings.Builder
	for _, row := range b.Rows {
		rank := row[0].Name[1:]
		sb.WriteString(rank)
		sb.WriteByte(' ')
		for _, c := range row {
			mark := " "
			switch {
			case c.Has(ClassSelected):
				mark = "*"
			case c.Has(ClassCaptureReceptor):
				mark = "x"
			case c.Has(ClassEmptyReceptor):
				mark = "+"
			}
			g := c.Glyph
			if g == "" || g == board.EmptyGlyph {
				g = "."
			}
			sb.WriteString(g)
			sb.WriteString(mark)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for _, c := range b.Rows[len(b.Rows)-1] {
		sb.WriteString(c.Name[:1])
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "%s to move. %s\n", b.SideToMove, b.Status)
	return sb.String()
}
