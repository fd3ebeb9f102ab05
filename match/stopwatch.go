package match

import (
	"time"

	"github.com/brensch/twinsnake/strategy"
)

// Stopwatch measures the time spent on the current move against a fixed
// per-move budget.
type Stopwatch struct {
	budget  time.Duration
	now     func() time.Time
	started time.Time
}

func NewStopwatch(budget time.Duration, now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{budget: budget, now: now, started: now()}
}

// Restart starts timing a new move.
func (s *Stopwatch) Restart() {
	s.started = s.now()
}

func (s *Stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.started)
}

// Remaining is negative once the budget is overrun.
func (s *Stopwatch) Remaining() time.Duration {
	return s.budget - s.Elapsed()
}

// Clock exposes the stopwatch to strategies.
func (s *Stopwatch) Clock() strategy.Clock {
	return func() (time.Duration, time.Duration) {
		elapsed := s.Elapsed()
		return elapsed, s.budget - elapsed
	}
}
