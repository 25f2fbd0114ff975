package authority

import (
	"github.com/corentings/chess/v2"
	"github.com/dylhunn/dragontoothmg"

	"mateboard/internal/codec"
	"mateboard/internal/protocol"
)

// Wire indices start at a8; chess squares start at a1.
func toSquare(index int) chess.Square {
	return chess.Square((7-index/8)*8 + index%8)
}

func fromSquare(sq chess.Square) int {
	return (7-int(sq)/8)*8 + int(sq)%8
}

var glyphs = map[chess.PieceType]string{
	chess.Pawn:   "p",
	chess.Knight: "n",
	chess.Bishop: "b",
	chess.Rook:   "r",
	chess.Queen:  "q",
	chess.King:   "k",
}

func glyph(p chess.Piece) string {
	g := glyphs[p.Type()]
	if p.Color() == chess.White {
		return string(g[0] - 'a' + 'A')
	}
	return g
}

func promotionOf(t chess.PieceType) codec.Promotion {
	switch t {
	case chess.Knight:
		return codec.PromoteKnight
	case chess.Bishop:
		return codec.PromoteBishop
	case chess.Rook:
		return codec.PromoteRook
	case chess.Queen:
		return codec.PromoteQueen
	}
	return codec.NoPromotion
}

// flagsFor classifies cm, played from pos, into the wire flag table.
func flagsFor(pos *chess.Position, cm *chess.Move) codec.Flags {
	capture := cm.HasTag(chess.Capture) || cm.HasTag(chess.EnPassant)
	if p := promotionOf(cm.Promo()); p != codec.NoPromotion {
		return codec.PromotionFlag(p, capture)
	}
	switch {
	case cm.HasTag(chess.KingSideCastle):
		return codec.KingCastle
	case cm.HasTag(chess.QueenSideCastle):
		return codec.QueenCastle
	case cm.HasTag(chess.EnPassant):
		return codec.EnPassant
	case capture:
		return codec.Capture
	}
	if pos.Board().Piece(cm.S1()).Type() == chess.Pawn {
		d := int(cm.S2()) - int(cm.S1())
		if d == 16 || d == -16 {
			return codec.DoublePawnPush
		}
	}
	return codec.Normal
}

var startCounts = map[chess.PieceType]int{
	chess.Pawn: 8, chess.Knight: 2, chess.Bishop: 2, chess.Rook: 2, chess.Queen: 1,
}

var captureOrder = []chess.PieceType{chess.Queen, chess.Rook, chess.Bishop, chess.Knight, chess.Pawn}

// captured lists the pieces of color missing from the board compared with
// the starting material. Promoted pieces offset missing pawns.
func captured(b *chess.Board, color chess.Color) []string {
	counts := map[chess.PieceType]int{}
	for sq := 0; sq < codec.Squares; sq++ {
		p := b.Piece(chess.Square(sq))
		if p != chess.NoPiece && p.Color() == color {
			counts[p.Type()]++
		}
	}
	// promoted pieces came from pawns
	for _, t := range []chess.PieceType{chess.Knight, chess.Bishop, chess.Rook, chess.Queen} {
		if extra := counts[t] - startCounts[t]; extra > 0 {
			counts[t] -= extra
			counts[chess.Pawn] += extra
		}
	}
	out := []string{}
	for _, t := range captureOrder {
		for i := counts[t]; i < startCounts[t]; i++ {
			out = append(out, glyph(chess.NewPiece(t, color)))
		}
	}
	return out
}

func winnerCode(o chess.Outcome) string {
	switch o {
	case chess.WhiteWon:
		return protocol.WinnerWhite
	case chess.BlackWon:
		return protocol.WinnerBlack
	case chess.Draw:
		return protocol.WinnerDraw
	}
	return protocol.WinnerNone
}

func (e *Engine) boardLocked() (protocol.Board, error) {
	pos := e.game.Position()
	fen := pos.String()
	b := pos.Board()

	var legal []chess.Move
	if e.game.Outcome() == chess.NoOutcome {
		legal = pos.ValidMoves()
	}

	out := protocol.Board{
		Pieces:        make([]protocol.Piece, codec.Squares),
		WhiteMove:     pos.Turn() == chess.White,
		WhiteCaptures: captured(b, chess.Black),
		BlackCaptures: captured(b, chess.White),
		Winner:        winnerCode(e.game.Outcome()),
		FEN:           fen,
	}
	for i := 0; i < codec.Squares; i++ {
		sq := toSquare(i)
		p := b.Piece(sq)
		wp := protocol.Piece{FEN: ".", Position: i, Moves: []protocol.Move{}}
		if p == chess.NoPiece {
			out.Pieces[i] = wp
			continue
		}
		wp.FEN = glyph(p)
		wp.White = p.Color() == chess.White
		for j := range legal {
			cm := &legal[j]
			if cm.S1() != sq {
				continue
			}
			wp.Moves = append(wp.Moves, protocol.Move{
				From:     i,
				To:       fromSquare(cm.S2()),
				Flags:    int(flagsFor(pos, cm)),
				Notation: chess.AlgebraicNotation{}.Encode(pos, cm),
			})
		}
		out.Pieces[i] = wp
	}

	dt := dragontoothmg.ParseFen(fen)
	inCheck := dt.OurKingInCheck()
	if dt.Wtomove {
		out.WhiteKingInCheck = inCheck
	} else {
		out.BlackKingInCheck = inCheck
	}
	out.Evaluation = float64(evaluate(&dt)) / 100
	if !dt.Wtomove {
		out.Evaluation = -out.Evaluation
	}

	hash, err := e.hasher.HashPosition(fen)
	if err != nil {
		return protocol.Board{}, err
	}
	out.Zobrist = chess.ZobristHashToUint64(hash)
	return out, nil
}
