package rules

import (
	nchess "github.com/corentings/chess/v2"
)

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
	nchess.King:   0,
}

// IsCheckmate reports whether the side to move is checkmated.
func (p *Position) IsCheckmate() bool {
	return p.game.Position().Status() == nchess.Checkmate
}

// IsStalemate reports whether the side to move has no legal move while
// not in check.
func (p *Position) IsStalemate() bool {
	return p.game.Position().Status() == nchess.Stalemate
}

// IsDrawByRule reports the automatic draw conditions: half-move clock
// at or past 100 half-moves, or one of the dead positions in
// insufficientMaterial. Repetition is not tracked; the position text
// carries no history.
func (p *Position) IsDrawByRule() bool {
	if p.HalfMoveClock() >= 100 {
		return true
	}
	return p.insufficientMaterial()
}

// IsTerminal reports whether the game cannot continue from here.
func (p *Position) IsTerminal() bool {
	return p.IsCheckmate() || p.IsStalemate() || p.IsDrawByRule()
}

// MaterialCount returns the summed material per side (p1 n3 b3 r5 q9).
func (p *Position) MaterialCount() (white, black int) {
	board := p.game.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			if piece.Color() == nchess.White {
				white += pieceValues[piece.Type()]
			} else {
				black += pieceValues[piece.Type()]
			}
		}
	}
	return white, black
}

// InCheck reports whether the side to move's king is attacked.
func (p *Position) InCheck() bool {
	board := p.game.Position().Board()
	us := p.game.Position().Turn()
	them := us.Other()

	kf, kr := -1, -1
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			piece := pieceOn(board, f, r)
			if piece != nchess.NoPiece && piece.Type() == nchess.King && piece.Color() == us {
				kf, kr = f, r
			}
		}
	}
	if kf < 0 {
		return false
	}
	return squareAttacked(board, kf, kr, them)
}

var (
	knightOffsets = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	orthogonalDir = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonalDir   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func pieceOn(board *nchess.Board, file, rank int) nchess.Piece {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return nchess.NoPiece
	}
	return board.Piece(nchess.NewSquare(nchess.File(file), nchess.Rank(rank)))
}

// squareAttacked scans outward from (file, rank) for any piece of the
// attacking color bearing on it: pawn and knight tables, adjacent king,
// sliding rays for bishops, rooks and queens.
func squareAttacked(board *nchess.Board, file, rank int, by nchess.Color) bool {
	pawnRank := rank - 1
	if by == nchess.Black {
		pawnRank = rank + 1
	}
	for _, df := range [2]int{-1, 1} {
		piece := pieceOn(board, file+df, pawnRank)
		if piece != nchess.NoPiece && piece.Color() == by && piece.Type() == nchess.Pawn {
			return true
		}
	}
	for _, off := range knightOffsets {
		piece := pieceOn(board, file+off[0], rank+off[1])
		if piece != nchess.NoPiece && piece.Color() == by && piece.Type() == nchess.Knight {
			return true
		}
	}
	for _, off := range kingOffsets {
		piece := pieceOn(board, file+off[0], rank+off[1])
		if piece != nchess.NoPiece && piece.Color() == by && piece.Type() == nchess.King {
			return true
		}
	}
	for _, dir := range orthogonalDir {
		if raysInto(board, file, rank, dir, by, nchess.Rook) {
			return true
		}
	}
	for _, dir := range diagonalDir {
		if raysInto(board, file, rank, dir, by, nchess.Bishop) {
			return true
		}
	}
	return false
}

func raysInto(board *nchess.Board, file, rank int, dir [2]int, by nchess.Color, slider nchess.PieceType) bool {
	f, r := file+dir[0], rank+dir[1]
	for f >= 0 && f <= 7 && r >= 0 && r <= 7 {
		piece := pieceOn(board, f, r)
		if piece != nchess.NoPiece {
			return piece.Color() == by && (piece.Type() == slider || piece.Type() == nchess.Queen)
		}
		f += dir[0]
		r += dir[1]
	}
	return false
}

// insufficientMaterial covers the dead positions the arena declares
// drawn immediately: K vs K, K+minor vs K, and K+B vs K+B.
func (p *Position) insufficientMaterial() bool {
	board := p.game.Position().Board()
	var white, black []nchess.PieceType
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			piece := pieceOn(board, f, r)
			if piece == nchess.NoPiece || piece.Type() == nchess.King {
				continue
			}
			if piece.Color() == nchess.White {
				white = append(white, piece.Type())
			} else {
				black = append(black, piece.Type())
			}
		}
	}
	switch {
	case len(white) == 0 && len(black) == 0:
		return true
	case len(white) == 0 && len(black) == 1:
		return black[0] == nchess.Bishop || black[0] == nchess.Knight
	case len(black) == 0 && len(white) == 1:
		return white[0] == nchess.Bishop || white[0] == nchess.Knight
	case len(white) == 1 && len(black) == 1:
		return white[0] == nchess.Bishop && black[0] == nchess.Bishop
	}
	return false
}
