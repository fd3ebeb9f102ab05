package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/brensch/twinsnake/game"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Options configures strategies built by New. Zero values pick defaults.
type Options struct {
	Rng    *rand.Rand
	Margin time.Duration
	Logger *slog.Logger

	// Clicks and Locate feed the human strategy.
	Clicks   <-chan game.Point
	Locate   func(game.Point) game.Coord
	OnReject func(game.Coord)

	// OpponentWeight is passed to the one-step strategy.
	OpponentWeight float64
}

// Names lists the built-in strategy names accepted by New. Scripts are
// selected with "lua:<path>".
var Names = []string{"random", "onestep", "human"}

// New builds a strategy by name.
func New(name string, opts Options) (Strategy, error) {
	switch {
	case name == "random":
		return NewRandom(opts.Rng, opts.Logger), nil
	case name == "onestep":
		s := NewOneStep(opts.Rng, opts.Margin, opts.Logger)
		s.OpponentWeight = opts.OpponentWeight
		return s, nil
	case name == "human":
		if opts.Clicks == nil {
			return nil, fmt.Errorf("human strategy needs a click source")
		}
		h := NewHuman(opts.Clicks, opts.Locate, opts.Rng, opts.Margin, opts.Logger)
		h.OnReject = opts.OnReject
		return h, nil
	case strings.HasPrefix(name, "lua:"):
		return NewScript(strings.TrimPrefix(name, "lua:"), opts.Rng, opts.Margin, opts.Logger)
	}
	return nil, fmt.Errorf("%w: %q (want one of %s or lua:<path>)", ErrUnknownStrategy, name, strings.Join(Names, ", "))
}
