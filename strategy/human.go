package strategy

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
)

const humanPollInterval = 10 * time.Millisecond

// Human waits for click events from a display. Clicks queued before the turn
// starts are discarded. A click on a cell that one of the player's ends can
// reach is played; any other click is reported through OnReject and ignored.
// If the clock runs low before a valid click arrives the random fallback is
// played instead.
type Human struct {
	base
	Clicks <-chan game.Point
	// Locate maps a click to a board cell. Nil means one screen unit per cell.
	Locate func(game.Point) game.Coord
	// OnReject is called with the cell of every click that is not a legal target.
	OnReject func(game.Coord)
}

func NewHuman(clicks <-chan game.Point, locate func(game.Point) game.Coord, rng *rand.Rand, margin time.Duration, log *slog.Logger) *Human {
	return &Human{base: newBase("human", rng, margin, log), Clicks: clicks, Locate: locate}
}

func (h *Human) IsHuman() bool { return true }

func (h *Human) SelectMove(ctx context.Context, board *game.Board, me game.Player, clock Clock, _ *game.Move) (game.Move, error) {
	fallback, err := h.candidates(board, me)
	if err != nil {
		return game.Move{}, err
	}
	legal := rules.MovesForPlayer(board, me, nil)

	ticker := time.NewTicker(humanPollInterval)
	defer ticker.Stop()

	clicks := h.Clicks
	// Clicks made before this turn started are not meant for it.
	stale := 0
drain:
	for {
		select {
		case _, ok := <-clicks:
			if !ok {
				clicks = nil
				break drain
			}
			stale++
		default:
			break drain
		}
	}
	if stale > 0 {
		h.log.Debug("discarded clicks from before the turn", "player", me, "count", stale)
	}

	for {
		if h.lowOnTime(clock) {
			h.log.Info("no move before the deadline, playing fallback", "player", me, "move", fallback[0].String())
			return fallback[0], nil
		}
		select {
		case <-ctx.Done():
			return game.Move{}, ctx.Err()
		case p, ok := <-clicks:
			if !ok {
				clicks = nil
				continue
			}
			at := h.locate(p)
			for _, m := range legal {
				if m.Target == at {
					return m, nil
				}
			}
			h.log.Debug("rejected click", "player", me, "cell", at.String())
			if h.OnReject != nil {
				h.OnReject(at)
			}
		case <-ticker.C:
		}
	}
}

func (h *Human) locate(p game.Point) game.Coord {
	if h.Locate != nil {
		return h.Locate(p)
	}
	return game.CellForPoint(p, 1)
}
