package authority

import (
	"context"
	"math/bits"
	"sort"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/dylhunn/dragontoothmg"
)

const mateScore = 100000

var pieceValues = [...]int{
	dragontoothmg.Pawn:   100,
	dragontoothmg.Knight: 300,
	dragontoothmg.Bishop: 320,
	dragontoothmg.Rook:   500,
	dragontoothmg.Queen:  900,
	dragontoothmg.King:   0,
}

// small bonus for pieces on the four center squares and their ring
const (
	center = uint64(0x0000001818000000)
	ring   = uint64(0x00003C24243C0000)
)

func material(bb *dragontoothmg.Bitboards) int {
	return bits.OnesCount64(bb.Pawns)*pieceValues[dragontoothmg.Pawn] +
		bits.OnesCount64(bb.Knights)*pieceValues[dragontoothmg.Knight] +
		bits.OnesCount64(bb.Bishops)*pieceValues[dragontoothmg.Bishop] +
		bits.OnesCount64(bb.Rooks)*pieceValues[dragontoothmg.Rook] +
		bits.OnesCount64(bb.Queens)*pieceValues[dragontoothmg.Queen]
}

func placement(bb *dragontoothmg.Bitboards) int {
	minor := bb.Pawns | bb.Knights | bb.Bishops
	return bits.OnesCount64(minor&center)*20 + bits.OnesCount64(minor&ring)*8
}

// evaluate scores b in centipawns from the side to move's view.
func evaluate(b *dragontoothmg.Board) int {
	white := material(&b.White) + placement(&b.White)
	black := material(&b.Black) + placement(&b.Black)
	if b.Wtomove {
		return white - black
	}
	return black - white
}

type searchResult struct {
	move       dragontoothmg.Move
	depth      int
	evaluation float64
	nodes      int
}

type searcher struct {
	ctx       context.Context
	deadline  time.Time
	nodes     int
	abortable bool
	stopped   bool
}

// search runs iterative deepening negamax up to maxDepth plies or until
// budget is spent. Depth 1 always completes.
func search(ctx context.Context, fen string, maxDepth int, budget time.Duration) (searchResult, error) {
	b := dragontoothmg.ParseFen(fen)
	moves := b.GenerateLegalMoves()
	if len(moves) == 0 {
		return searchResult{}, ErrGameOver
	}
	s := &searcher{ctx: ctx, deadline: time.Now().Add(budget)}
	best := searchResult{move: moves[0]}
	bestScore := 0

	for depth := 1; depth <= maxDepth; depth++ {
		s.abortable = depth > 1
		mv, score := s.root(&b, moves, depth, best.move)
		if s.stopped {
			break
		}
		best.move, best.depth, bestScore = mv, depth, score
		if score >= mateScore-maxDepth || score <= -mateScore+maxDepth {
			break
		}
	}
	best.nodes = s.nodes
	best.evaluation = float64(bestScore) / 100
	if !b.Wtomove {
		best.evaluation = -best.evaluation
	}
	return best, nil
}

func (s *searcher) root(b *dragontoothmg.Board, moves []dragontoothmg.Move, depth int, pv dragontoothmg.Move) (dragontoothmg.Move, int) {
	ordered := orderMoves(b, moves, pv)
	alpha, beta := -mateScore-1, mateScore+1
	best := ordered[0]
	for _, m := range ordered {
		undo := b.Apply(m)
		score := -s.negamax(b, depth-1, -beta, -alpha, 1)
		undo()
		if s.stopped {
			return best, alpha
		}
		if score > alpha {
			alpha, best = score, m
		}
	}
	return best, alpha
}

func (s *searcher) negamax(b *dragontoothmg.Board, depth, alpha, beta, ply int) int {
	s.nodes++
	if s.abortable && s.nodes&1023 == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.stopped = true
		}
	}
	if s.stopped {
		return 0
	}
	moves := b.GenerateLegalMoves()
	if len(moves) == 0 {
		if b.OurKingInCheck() {
			return -mateScore + ply
		}
		return 0
	}
	if depth <= 0 {
		return evaluate(b)
	}
	for _, m := range orderMoves(b, moves, 0) {
		undo := b.Apply(m)
		score := -s.negamax(b, depth-1, -beta, -alpha, ply+1)
		undo()
		if s.stopped {
			return 0
		}
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}

// orderMoves puts pv first, then captures, then the rest.
func orderMoves(b *dragontoothmg.Board, moves []dragontoothmg.Move, pv dragontoothmg.Move) []dragontoothmg.Move {
	enemy := b.Black.All
	if !b.Wtomove {
		enemy = b.White.All
	}
	rank := func(m dragontoothmg.Move) int {
		switch {
		case pv != 0 && m == pv:
			return 0
		case enemy&(uint64(1)<<m.To()) != 0:
			return 1
		case m.Promote() != 0:
			return 1
		}
		return 2
	}
	out := make([]dragontoothmg.Move, len(moves))
	copy(out, moves)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// perft counts the leaf nodes of the legal move tree.
func perft(b *dragontoothmg.Board, depth int) uint64 {
	moves := b.GenerateLegalMoves()
	if depth <= 1 {
		return uint64(len(moves))
	}
	var n uint64
	for _, m := range moves {
		undo := b.Apply(m)
		n += perft(b, depth-1)
		undo()
	}
	return n
}

func promoFromDragon(p dragontoothmg.Piece) chess.PieceType {
	switch p {
	case dragontoothmg.Knight:
		return chess.Knight
	case dragontoothmg.Bishop:
		return chess.Bishop
	case dragontoothmg.Rook:
		return chess.Rook
	case dragontoothmg.Queen:
		return chess.Queen
	}
	return chess.NoPieceType
}
