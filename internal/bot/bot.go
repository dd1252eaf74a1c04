// Package bot picks moves for the built-in opponent. Three tiers:
// EASY plays uniformly random, MEDIUM grabs the most valuable capture,
// HARD runs a fixed-depth alpha-beta search over material.
package bot

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/rules"
)

// ErrNoLegalMoves means the position is terminal and nothing can be
// selected; callers should have resolved the game before asking.
var ErrNoLegalMoves = errors.New("no legal moves")

const defaultDepth = 3

// mateScore dominates any material swing; the depth bonus prefers the
// shortest mate and the longest defense.
const mateScore = 100000

// Selector selects bot moves. The random source is injected so tests
// can pin seeds; HARD never consults it.
type Selector struct {
	depth int
	rng   *rand.Rand
}

func NewSelector(depth int, rng *rand.Rand) *Selector {
	if depth <= 0 {
		depth = defaultDepth
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{depth: depth, rng: rng}
}

// Select returns a legal move for the side to move at the given tier.
func (s *Selector) Select(p *rules.Position, level domain.BotLevel) (rules.Move, error) {
	moves := p.LegalMoves()
	if len(moves) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	switch level {
	case domain.BotEasy:
		return moves[s.rng.Intn(len(moves))], nil
	case domain.BotMedium:
		return s.selectGreedy(p, moves), nil
	case domain.BotHard:
		return s.selectMinimax(p, moves), nil
	}
	return rules.Move{}, fmt.Errorf("unknown bot level %q", level)
}

// selectGreedy restricts to captures ranked by victim value and picks
// uniformly among the best tier; with no capture on the board it falls
// back to a random legal move.
func (s *Selector) selectGreedy(p *rules.Position, moves []rules.Move) rules.Move {
	best := 0
	var captures []rules.Move
	for _, m := range moves {
		v := p.CaptureValue(m)
		if v == 0 {
			continue
		}
		if v > best {
			best = v
			captures = captures[:0]
		}
		if v == best {
			captures = append(captures, m)
		}
	}
	if len(captures) == 0 {
		return moves[s.rng.Intn(len(moves))]
	}
	return captures[s.rng.Intn(len(captures))]
}

// selectMinimax walks the legal moves in their canonical order and
// keeps the first strict improvement, so the choice is deterministic
// for a fixed position and depth.
func (s *Selector) selectMinimax(p *rules.Position, moves []rules.Move) rules.Move {
	chosen := moves[0]
	alpha := -mateScore * 2
	beta := mateScore * 2
	for _, m := range moves {
		next, err := p.Apply(m)
		if err != nil {
			continue
		}
		score := -negamax(next, s.depth-1, -beta, -alpha)
		if score > alpha {
			alpha = score
			chosen = m
		}
	}
	return chosen
}

// negamax scores the position for the side to move. Checkmate is worth
// -mateScore minus the remaining depth, so nearer mates score larger
// in absolute value.
func negamax(p *rules.Position, depth, alpha, beta int) int {
	if p.IsCheckmate() {
		return -(mateScore + depth)
	}
	if p.IsStalemate() || p.IsDrawByRule() {
		return 0
	}
	if depth <= 0 {
		return evaluate(p)
	}
	for _, m := range p.LegalMoves() {
		next, err := p.Apply(m)
		if err != nil {
			continue
		}
		score := -negamax(next, depth-1, -beta, -alpha)
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}

// evaluate is the material balance from the mover's point of view.
func evaluate(p *rules.Position) int {
	white, black := p.MaterialCount()
	if p.Turn() == rules.White {
		return white - black
	}
	return black - white
}
