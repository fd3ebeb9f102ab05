package strategy

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/brensch/twinsnake/game"
)

// Random plays the first move of a uniformly shuffled legal list.
type Random struct {
	base
}

func NewRandom(rng *rand.Rand, log *slog.Logger) *Random {
	return &Random{base: newBase("random", rng, 0, log)}
}

func (r *Random) SelectMove(ctx context.Context, board *game.Board, me game.Player, _ Clock, _ *game.Move) (game.Move, error) {
	if err := ctx.Err(); err != nil {
		return game.Move{}, err
	}
	moves, err := r.candidates(board, me)
	if err != nil {
		return game.Move{}, err
	}
	return moves[0], nil
}
