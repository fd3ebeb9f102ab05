// Package strategy holds the move-selection policies a match can seat: random
// play, a one-ply mobility search, a human fed by click events and a Lua
// scripted player.
//
// Every strategy works on a private copy of the board and must return a move
// from rules.GetLegalMoves(board)[me]. Running low on time is never an error:
// once the clock reports less than the safety margin remaining, a strategy
// returns the best move it has found so far.
package strategy

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
)

// DefaultMargin is how much of the move budget is kept back for the match to
// validate and apply a move.
const DefaultMargin = 100 * time.Millisecond

var ErrNoLegalMoves = errors.New("no legal moves")

// Clock reports the time spent on the current move and the time left.
type Clock func() (elapsed, remaining time.Duration)

type Strategy interface {
	Name() string
	// SelectMove picks a move for me. board is a clone owned by the strategy.
	// last is the opponent's previous move, nil on the first turn.
	SelectMove(ctx context.Context, board *game.Board, me game.Player, clock Clock, last *game.Move) (game.Move, error)
	// LoadData runs once before the first turn under the same budget as a move.
	LoadData(ctx context.Context, board *game.Board, me game.Player, clock Clock) error
	IsHuman() bool
}

// base carries the fields every strategy shares and the default LoadData.
type base struct {
	name   string
	rng    *rand.Rand
	margin time.Duration
	log    *slog.Logger
}

func newBase(name string, rng *rand.Rand, margin time.Duration, log *slog.Logger) base {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if margin <= 0 {
		margin = DefaultMargin
	}
	if log == nil {
		log = slog.Default()
	}
	return base{name: name, rng: rng, margin: margin, log: log.With("strategy", name)}
}

func (b *base) Name() string  { return b.name }
func (b *base) IsHuman() bool { return false }

func (b *base) LoadData(_ context.Context, _ *game.Board, me game.Player, _ Clock) error {
	b.log.Debug("declines to preload", "player", me)
	return nil
}

// lowOnTime reports whether the clock has dropped below the margin.
func (b *base) lowOnTime(clock Clock) bool {
	if clock == nil {
		return false
	}
	_, remaining := clock()
	return remaining < b.margin
}

// candidates returns me's moves in random order; the first one is the
// fallback any strategy can return without further thought.
func (b *base) candidates(board *game.Board, me game.Player) ([]game.Move, error) {
	moves := rules.MovesForPlayer(board, me, b.rng)
	if len(moves) == 0 {
		return nil, ErrNoLegalMoves
	}
	return moves, nil
}

// FixedClock returns a Clock that always reports the given values.
func FixedClock(elapsed, remaining time.Duration) Clock {
	return func() (time.Duration, time.Duration) { return elapsed, remaining }
}
