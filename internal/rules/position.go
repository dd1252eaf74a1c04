// Package rules wraps the chess library behind the small surface the
// arena needs: a canonical position text, legal move generation in a
// fixed order, and the terminal predicates that decide games.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	// ErrMalformedPosition marks a position text that cannot be decoded.
	// A stored game carrying one is unusable and is reported as such,
	// never repaired in place.
	ErrMalformedPosition = errors.New("malformed position")

	// ErrInvalidMove marks a move that is not legal in the position.
	ErrInvalidMove = errors.New("invalid move")
)

// StartingPositionText is the canonical text of the initial position.
const StartingPositionText = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color is the side to move or the side a participant plays.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Position is an immutable chess position. Apply returns a new
// Position; the receiver is never mutated.
type Position struct {
	game *nchess.Game
}

// Decode parses a position text (FEN). Any parse failure is reported
// as ErrMalformedPosition with the library detail wrapped in.
func Decode(text string) (*Position, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPosition)
	}
	fenOpt, err := nchess.FEN(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPosition, err)
	}
	return &Position{game: nchess.NewGame(fenOpt)}, nil
}

// Starting returns the initial position.
func Starting() *Position {
	p, err := Decode(StartingPositionText)
	if err != nil {
		panic("rules: starting position does not decode: " + err.Error())
	}
	return p
}

// Encode returns the canonical position text. Decode(p.Encode()) yields
// an equivalent position.
func (p *Position) Encode() string {
	return p.game.FEN()
}

// Turn returns the side to move.
func (p *Position) Turn() Color {
	if p.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// HalfMoveClock returns the half-move clock field of the position,
// the number of half-moves since the last capture or pawn advance.
func (p *Position) HalfMoveClock() int {
	fields := strings.Fields(p.Encode())
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// FullMoveNumber returns the full-move counter of the position.
func (p *Position) FullMoveNumber() int {
	fields := strings.Fields(p.Encode())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil {
		return 1
	}
	return n
}
