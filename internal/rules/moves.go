package rules

import (
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Move is a single legal move bound to the position it was generated
// from. Values are only produced by LegalMoves and ParseMove.
type Move struct {
	inner nchess.Move
	uci   string
}

// UCI returns the move in UCI notation (e2e4, e7e8q).
func (m Move) UCI() string { return m.uci }

// LegalMoves returns every legal move in the position: castling when
// permitted, en passant, and one entry per promotion piece. The order
// is fixed — source square, then destination square, then promotion
// piece — callers may rely on it for deterministic selection.
func (p *Position) LegalMoves() []Move {
	pos := p.game.Position()
	valid := p.game.ValidMoves()
	moves := make([]Move, 0, len(valid))
	notation := nchess.UCINotation{}
	for _, mv := range valid {
		moves = append(moves, Move{inner: mv, uci: notation.Encode(pos, &mv)})
	}
	sort.Slice(moves, func(i, j int) bool {
		a, b := moves[i].inner, moves[j].inner
		if a.S1() != b.S1() {
			return a.S1() < b.S1()
		}
		if a.S2() != b.S2() {
			return a.S2() < b.S2()
		}
		return a.Promo() < b.Promo()
	})
	return moves
}

// ParseMove resolves a move text (UCI preferred, SAN fallback) to a
// member of the legal move set. Anything else fails with
// ErrInvalidMove.
func (p *Position) ParseMove(text string) (Move, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Move{}, ErrInvalidMove
	}
	pos := p.game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil {
		decoded, err = nchess.AlgebraicNotation{}.Decode(pos, raw)
		if err != nil {
			return Move{}, ErrInvalidMove
		}
	}
	for _, m := range p.LegalMoves() {
		if m.inner.S1() == decoded.S1() && m.inner.S2() == decoded.S2() && m.inner.Promo() == decoded.Promo() {
			return m, nil
		}
	}
	return Move{}, ErrInvalidMove
}

// Apply plays a legal move and returns the resulting position. Moves
// not in the legal set fail with ErrInvalidMove; castling rights, the
// en-passant target and both clocks are maintained by the library.
func (p *Position) Apply(m Move) (*Position, error) {
	if m.uci == "" {
		return nil, ErrInvalidMove
	}
	next := p.game.Clone()
	if err := next.PushNotationMove(m.uci, nchess.UCINotation{}, nil); err != nil {
		return nil, ErrInvalidMove
	}
	return &Position{game: next}, nil
}

// ApplyText parses and plays a move in one step.
func (p *Position) ApplyText(text string) (*Position, Move, error) {
	m, err := p.ParseMove(text)
	if err != nil {
		return nil, Move{}, err
	}
	next, err := p.Apply(m)
	if err != nil {
		return nil, Move{}, err
	}
	return next, m, nil
}

// CaptureValue returns the material value of the piece the move
// captures, or 0 for a quiet move. En passant counts as a pawn.
func (p *Position) CaptureValue(m Move) int {
	if m.inner.HasTag(nchess.EnPassant) {
		return pieceValues[nchess.Pawn]
	}
	if !m.inner.HasTag(nchess.Capture) {
		return 0
	}
	victim := p.game.Position().Board().Piece(m.inner.S2())
	if victim == nchess.NoPiece {
		return 0
	}
	return pieceValues[victim.Type()]
}
