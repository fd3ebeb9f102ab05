// Package rules implements move generation and move application for twinsnake.
package rules

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/twinsnake/game"
)

// ErrNoOriginEnd means a move did not start from either of the acting player's
// ends. It can only happen when a move is applied that was not generated from
// the same board, and callers must treat it as fatal.
var ErrNoOriginEnd = errors.New("no end of the acting player precedes this move")

// ErrOccupied means a move targets a cell that is already claimed.
var ErrOccupied = errors.New("target cell is already claimed")

// GetLegalMoves returns the legal moves for both players, indexed by player.
// Each list holds the moves of end 0 followed by end 1, in the mode's offset
// order. If rng is non-nil each list is returned in a uniformly random order.
func GetLegalMoves(b *game.Board, rng *rand.Rand) [2][]game.Move {
	return [2][]game.Move{
		MovesForPlayer(b, game.Player0, rng),
		MovesForPlayer(b, game.Player1, rng),
	}
}

// MovesForPlayer returns p's legal moves. See GetLegalMoves.
func MovesForPlayer(b *game.Board, p game.Player, rng *rand.Rand) []game.Move {
	offsets := b.Mode.Offsets()
	moves := make([]game.Move, 0, 2*len(offsets))
	for _, end := range b.EndsOf(p) {
		for _, o := range offsets {
			heading := end.Heading.Rotate(o)
			target := end.At.Add(heading.Vector())
			if !b.EmptyAt(target) {
				continue
			}
			moves = append(moves, game.Move{Target: target, Heading: heading})
		}
	}
	if rng != nil {
		moves = shuffle(moves, rng)
	}
	return moves
}

// shuffle draws elements at uniformly random positions from a shrinking working
// list, so every permutation is equally likely.
func shuffle(moves []game.Move, rng *rand.Rand) []game.Move {
	out := make([]game.Move, 0, len(moves))
	for len(moves) > 0 {
		i := rng.Intn(len(moves))
		out = append(out, moves[i])
		moves = append(moves[:i], moves[i+1:]...)
	}
	return out
}

// Mobility counts p's legal moves.
func Mobility(b *game.Board, p game.Player) int {
	n := 0
	offsets := b.Mode.Offsets()
	for _, end := range b.EndsOf(p) {
		for _, o := range offsets {
			if b.EmptyAt(end.At.Add(end.Heading.Rotate(o).Vector())) {
				n++
			}
		}
	}
	return n
}

// IsLegalForPlayer reports whether c is a target in p's current legal moves.
func IsLegalForPlayer(b *game.Board, c game.Coord, p game.Player) bool {
	for _, m := range MovesForPlayer(b, p, nil) {
		if m.Target == c {
			return true
		}
	}
	return false
}

// Contains reports whether m appears in moves.
func Contains(moves []game.Move, m game.Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

// Apply claims m.Target for p and moves the end m grew from onto it.
// The end is found by stepping back from the target against m.Heading; if
// neither of p's ends sits there the board is left unchanged and
// ErrNoOriginEnd is returned. A claimed target returns ErrOccupied, also
// without touching the board.
func Apply(b *game.Board, m game.Move, p game.Player) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", game.ErrInvalidPlayer, p)
	}
	if !b.InBounds(m.Target) {
		return fmt.Errorf("apply %v: %w", m, game.ErrOutOfBounds)
	}
	if !b.EmptyAt(m.Target) {
		return fmt.Errorf("apply %v for player %d: %w", m, p, ErrOccupied)
	}

	origin := m.Target.Add(m.Heading.Reverse().Vector())
	which := -1
	for i, end := range b.Ends[p] {
		if end.At == origin {
			which = i
			break
		}
	}
	if which < 0 {
		return fmt.Errorf("apply %v for player %d (origin %v, ends %v): %w",
			m, p, origin, b.Ends[p], ErrNoOriginEnd)
	}

	b.SetCell(m.Target, p.Mark())
	b.Ends[p][which] = game.End{At: m.Target, Heading: m.Heading}
	return nil
}

// NextState returns a copy of b with m applied for p. b is not modified.
func NextState(b *game.Board, m game.Move, p game.Player) (*game.Board, error) {
	next := b.Clone()
	if err := Apply(next, m, p); err != nil {
		return nil, err
	}
	return next, nil
}

// IsGameOver reports whether p, the player due to move, has no legal move left.
func IsGameOver(b *game.Board, toMove game.Player) bool {
	return Mobility(b, toMove) == 0
}
