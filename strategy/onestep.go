package strategy

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
)

// Scored is one candidate evaluated by OneStep.
type Scored struct {
	Move     game.Move
	Mine     int
	Theirs   int
	Score    float64
	Best     bool
	Elapsed  time.Duration
	Position int
}

// OneStep tries each legal move on a scratch board and keeps the one that
// leaves it the most moves afterwards. With OpponentWeight > 0 the opponent's
// mobility is subtracted, scaled by the weight.
type OneStep struct {
	base
	OpponentWeight float64
	// Trace, if set, is called for every candidate that gets scored.
	Trace func(Scored)

	scratch game.Board
}

func NewOneStep(rng *rand.Rand, margin time.Duration, log *slog.Logger) *OneStep {
	return &OneStep{base: newBase("onestep", rng, margin, log)}
}

func (s *OneStep) SelectMove(ctx context.Context, board *game.Board, me game.Player, clock Clock, _ *game.Move) (game.Move, error) {
	if err := ctx.Err(); err != nil {
		return game.Move{}, err
	}
	moves, err := s.candidates(board, me)
	if err != nil {
		return game.Move{}, err
	}

	best := moves[0]
	bestScore := 0.0
	scored := 0
	for i, m := range moves {
		if ctx.Err() != nil || s.lowOnTime(clock) {
			break
		}
		board.CloneInto(&s.scratch)
		if err := rules.Apply(&s.scratch, m, me); err != nil {
			// Candidates come from this board, so this is a broken invariant.
			return game.Move{}, err
		}
		mine := rules.Mobility(&s.scratch, me)
		theirs := 0
		if s.OpponentWeight != 0 {
			theirs = rules.Mobility(&s.scratch, me.Other())
		}
		score := float64(mine) - s.OpponentWeight*float64(theirs)

		improved := scored == 0 || score > bestScore
		if improved {
			best, bestScore = m, score
		}
		scored++
		if s.Trace != nil {
			var elapsed time.Duration
			if clock != nil {
				elapsed, _ = clock()
			}
			s.Trace(Scored{Move: m, Mine: mine, Theirs: theirs, Score: score, Best: improved, Elapsed: elapsed, Position: i})
		}
	}

	s.log.Debug("one-step search done", "player", me, "candidates", len(moves), "scored", scored, "move", best.String(), "score", bestScore)
	return best, nil
}
