package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

var plenty = FixedClock(0, time.Hour)

// stuckBoard returns a 6x6 board where player 1 has no legal move.
func stuckBoard(t *testing.T) *game.Board {
	t.Helper()
	b, err := game.NewBoardWithEnds(6, game.Mode6, [2][2]game.End{
		{{At: game.Coord{Row: 2, Col: 2}, Heading: game.East}, {At: game.Coord{Row: 2, Col: 1}, Heading: game.West}},
		{{At: game.Coord{Row: 0, Col: 0}, Heading: game.North}, {At: game.Coord{Row: 5, Col: 5}, Heading: game.South}},
	})
	if err != nil {
		t.Fatalf("NewBoardWithEnds: %v", err)
	}
	b.SetCell(game.Coord{Row: 0, Col: 1}, game.Player0Mark)
	b.SetCell(game.Coord{Row: 5, Col: 4}, game.Player0Mark)
	if n := rules.Mobility(b, game.Player1); n != 0 {
		t.Fatalf("fixture: player 1 has %d moves\n%s", n, b)
	}
	return b
}

func requireLegal(t *testing.T, b *game.Board, p game.Player, m game.Move) {
	t.Helper()
	if !rules.Contains(rules.MovesForPlayer(b, p, nil), m) {
		t.Fatalf("move %v is not legal for player %d\n%s", m, p, b)
	}
}

func TestRandom_ReturnsLegalMoves(t *testing.T) {
	s := NewRandom(seeded(3), quiet())
	b, _ := game.NewBoard(10, game.Mode10)
	p := game.Player0
	for turn := 0; turn < 200; turn++ {
		m, err := s.SelectMove(context.Background(), b.Clone(), p, plenty, nil)
		if errors.Is(err, ErrNoLegalMoves) {
			t.Logf("player %d stuck after %d turns\n%s", p, turn, b)
			return
		}
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		requireLegal(t, b, p, m)
		if err := rules.Apply(b, m, p); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		p = p.Other()
	}
}

func TestStrategies_NoLegalMoves(t *testing.T) {
	b := stuckBoard(t)
	script, err := NewScriptString("first", "function select_move(moves) return 1 end", seeded(1), 0, quiet())
	if err != nil {
		t.Fatalf("NewScriptString: %v", err)
	}
	defer script.Close()

	for _, s := range []Strategy{
		NewRandom(seeded(1), quiet()),
		NewOneStep(seeded(1), 0, quiet()),
		NewHuman(make(chan game.Point), nil, seeded(1), 0, quiet()),
		script,
	} {
		if _, err := s.SelectMove(context.Background(), b, game.Player1, plenty, nil); !errors.Is(err, ErrNoLegalMoves) {
			t.Errorf("%s: err=%v want ErrNoLegalMoves", s.Name(), err)
		}
	}
}

func TestOneStep_AlwaysLegal(t *testing.T) {
	budgets := []time.Duration{0, 50 * time.Millisecond, DefaultMargin, time.Second}
	for trial := 0; trial < 20; trial++ {
		for _, remaining := range budgets {
			s := NewOneStep(seeded(int64(trial)), 0, quiet())
			s.OpponentWeight = float64(trial % 3)
			b, _ := game.NewBoard(8, game.Mode(trial%3))
			p := game.Player0
			for turn := 0; turn < 60; turn++ {
				m, err := s.SelectMove(context.Background(), b.Clone(), p, FixedClock(0, remaining), nil)
				if errors.Is(err, ErrNoLegalMoves) {
					break
				}
				if err != nil {
					t.Fatalf("trial %d: %v", trial, err)
				}
				requireLegal(t, b, p, m)
				_ = rules.Apply(b, m, p)
				p = p.Other()
			}
		}
	}
}

func TestOneStep_ZeroBudgetPlaysFallback(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode14)
	want, _ := NewRandom(seeded(9), quiet()).SelectMove(context.Background(), b, game.Player1, nil, nil)

	s := NewOneStep(seeded(9), 0, quiet())
	s.Trace = func(sc Scored) { t.Fatalf("scored %v with no time left", sc.Move) }
	got, err := s.SelectMove(context.Background(), b, game.Player1, FixedClock(time.Second, 0), nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	if got != want {
		t.Fatalf("got %v want fallback %v", got, want)
	}
}

func TestOneStep_PicksFirstBestMobility(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode10)
	s := NewOneStep(seeded(5), 0, quiet())
	var trace []Scored
	s.Trace = func(sc Scored) { trace = append(trace, sc) }

	got, err := s.SelectMove(context.Background(), b, game.Player0, plenty, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	if len(trace) != rules.Mobility(b, game.Player0) {
		t.Fatalf("scored %d candidates want %d", len(trace), rules.Mobility(b, game.Player0))
	}

	best := trace[0]
	for _, sc := range trace {
		next, _ := rules.NextState(b, sc.Move, game.Player0)
		if want := rules.Mobility(next, game.Player0); sc.Mine != want {
			t.Fatalf("%v scored mobility %d want %d", sc.Move, sc.Mine, want)
		}
		if sc.Score > best.Score {
			best = sc
		}
		t.Logf("%d %v mine=%d best=%v", sc.Position, sc.Move, sc.Mine, sc.Best)
	}
	if got != best.Move {
		t.Fatalf("got %v want first best %v", got, best.Move)
	}
}

func TestOneStep_StopsWhenClockRunsLow(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode14)
	s := NewOneStep(seeded(2), 0, quiet())
	scored := 0
	s.Trace = func(Scored) { scored++ }
	clock := func() (time.Duration, time.Duration) {
		if scored < 2 {
			return 0, time.Second
		}
		return time.Second, DefaultMargin - 1
	}
	m, err := s.SelectMove(context.Background(), b, game.Player0, clock, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	requireLegal(t, b, game.Player0, m)
	if scored != 2 {
		t.Fatalf("scored %d candidates want 2", scored)
	}
}

func TestOneStep_OpponentWeightPrefersBlocking(t *testing.T) {
	// Player 0 can claim (5,4), the only cell player 1 can reach.
	b, _ := game.NewBoardWithEnds(6, game.Mode6, [2][2]game.End{
		{{At: game.Coord{Row: 5, Col: 3}, Heading: game.East}, {At: game.Coord{Row: 2, Col: 2}, Heading: game.North}},
		{{At: game.Coord{Row: 0, Col: 0}, Heading: game.North}, {At: game.Coord{Row: 5, Col: 5}, Heading: game.South}},
	})
	b.SetCell(game.Coord{Row: 0, Col: 1}, game.Player0Mark)

	s := NewOneStep(seeded(1), 0, quiet())
	s.OpponentWeight = 100
	m, err := s.SelectMove(context.Background(), b, game.Player0, plenty, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	if m.Target != (game.Coord{Row: 5, Col: 4}) {
		t.Fatalf("got %v want the blocking move onto (5,4)\n%s", m, b)
	}
}

func TestOneStep_CancelledContext(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewOneStep(seeded(1), 0, quiet()).SelectMove(ctx, b, game.Player0, plenty, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

// keepClicking sends p on clicks every few milliseconds until stop is closed.
// Clicks are only read while a turn is waiting, so a single send could land
// before the turn starts and be discarded.
func keepClicking(clicks chan<- game.Point, p game.Point, stop <-chan struct{}) {
	for {
		select {
		case clicks <- p:
		case <-stop:
			return
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-stop:
			return
		}
	}
}

func TestHuman_RejectsThenAccepts(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	clicks := make(chan game.Point, 1)
	const cell = 30
	h := NewHuman(clicks, func(p game.Point) game.Coord { return game.CellForPoint(p, cell) }, seeded(1), 0, quiet())
	var rejected []game.Coord
	firstReject := make(chan struct{})
	h.OnReject = func(c game.Coord) {
		if len(rejected) == 0 {
			close(firstReject)
		}
		rejected = append(rejected, c)
	}

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		inner := make(chan struct{})
		go func() {
			select {
			case <-firstReject:
			case <-stop:
			}
			close(inner)
		}()
		// (0,0) is not reachable; (3,4) is.
		keepClicking(clicks, game.Point{X: 5, Y: 5}, inner)
		keepClicking(clicks, game.Point{X: 4*cell + 7, Y: 3*cell + 2}, stop)
	}()

	m, err := h.SelectMove(context.Background(), b, game.Player0, plenty, nil)
	close(stop)
	<-finished
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	want := game.Move{Target: game.Coord{Row: 3, Col: 4}, Heading: game.East}
	if m != want {
		t.Fatalf("got %v want %v", m, want)
	}
	if len(rejected) == 0 {
		t.Fatalf("no click was rejected")
	}
	for _, c := range rejected {
		if c != (game.Coord{}) {
			t.Fatalf("rejected=%v want only (0,0)", rejected)
		}
	}
	if !h.IsHuman() {
		t.Fatalf("IsHuman=false")
	}
}

func TestHuman_DiscardsClicksFromBeforeTheTurn(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	clicks := make(chan game.Point, 1)
	h := NewHuman(clicks, nil, seeded(1), 0, quiet())

	// (3,4) is a legal target for player 0, but it was clicked during the
	// opponent's turn.
	clicks <- game.Point{X: 4, Y: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	m, err := h.SelectMove(ctx, b, game.Player0, plenty, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v err=%v, want to keep waiting until the deadline", m, err)
	}
	if len(clicks) != 0 {
		t.Fatalf("queued click was left in the channel")
	}
}

func TestHuman_TimeoutPlaysFallback(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode10)
	want, _ := NewRandom(seeded(4), quiet()).SelectMove(context.Background(), b, game.Player1, nil, nil)

	h := NewHuman(make(chan game.Point), nil, seeded(4), 0, quiet())
	start := time.Now()
	deadline := start.Add(150 * time.Millisecond)
	clock := func() (time.Duration, time.Duration) { return time.Since(start), time.Until(deadline) }

	m, err := h.SelectMove(context.Background(), b, game.Player1, clock, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	if m != want {
		t.Fatalf("got %v want fallback %v", m, want)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("waited %v for a 150ms budget", waited)
	}
}

func TestHuman_CancelledWhileWaiting(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	h := NewHuman(make(chan game.Point), nil, seeded(1), 0, quiet())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := h.SelectMove(ctx, b, game.Player0, plenty, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}

func TestScript_SelectsByIndex(t *testing.T) {
	src := `
function select_move(moves, board, me)
  for i, m in ipairs(moves) do
    if m.heading == 2 and board.size == 8 and me == 0 then
      return i
    end
  end
  return 1
end
`
	s, err := NewScriptString("south", src, seeded(1), 0, quiet())
	if err != nil {
		t.Fatalf("NewScriptString: %v", err)
	}
	defer s.Close()

	b, _ := game.NewBoard(8, game.Mode6)
	m, err := s.SelectMove(context.Background(), b, game.Player0, plenty, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	want := game.Move{Target: game.Coord{Row: 4, Col: 3}, Heading: game.South}
	if m != want {
		t.Fatalf("got %v want %v", m, want)
	}
}

func TestScript_FallsBack(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	want, _ := NewRandom(seeded(6), quiet()).SelectMove(context.Background(), b, game.Player0, nil, nil)

	for name, src := range map[string]string{
		"bad index":  "function select_move(moves) return #moves + 1 end",
		"fraction":   "function select_move(moves) return 1.5 end",
		"not number": "function select_move(moves) return 'x' end",
		"error":      "function select_move(moves) error('boom') end",
	} {
		s, err := NewScriptString(name, src, seeded(6), 0, quiet())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		m, err := s.SelectMove(context.Background(), b, game.Player0, plenty, nil)
		if err != nil {
			t.Fatalf("%s: SelectMove: %v", name, err)
		}
		if m != want {
			t.Errorf("%s: got %v want fallback %v", name, m, want)
		}
		s.Close()
	}
}

func TestScript_TimeoutRecovers(t *testing.T) {
	src := `
calls = 0
function select_move(moves)
  calls = calls + 1
  if calls == 1 then
    while true do end
  end
  return 1
end
`
	s, err := NewScriptString("slow", src, seeded(1), 0, quiet())
	if err != nil {
		t.Fatalf("NewScriptString: %v", err)
	}
	defer s.Close()
	b, _ := game.NewBoard(8, game.Mode6)

	start := time.Now()
	m, err := s.SelectMove(context.Background(), b, game.Player0, FixedClock(0, DefaultMargin+50*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	requireLegal(t, b, game.Player0, m)
	if time.Since(start) > time.Second {
		t.Fatalf("script ran %v past its budget", time.Since(start))
	}

	// The reloaded state starts over, so the loop runs again on its first call.
	m, err = s.SelectMove(context.Background(), b, game.Player0, FixedClock(0, DefaultMargin+50*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("second SelectMove: %v", err)
	}
	requireLegal(t, b, game.Player0, m)
}

func TestScript_ReloadFailureKeepsPlayingFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spin.lua")
	if err := os.WriteFile(path, []byte("function select_move(moves) while true do end end"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewScript(path, seeded(9), 0, quiet())
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	defer s.Close()

	// The interrupted state is rebuilt from the file, which is now broken.
	if err := os.WriteFile(path, []byte("function select_move("), 0o644); err != nil {
		t.Fatal(err)
	}

	b, _ := game.NewBoard(8, game.Mode6)
	clock := FixedClock(0, DefaultMargin+50*time.Millisecond)
	for i := 0; i < 2; i++ {
		m, err := s.SelectMove(context.Background(), b, game.Player0, clock, nil)
		if err != nil {
			t.Fatalf("call %d: SelectMove: %v", i, err)
		}
		requireLegal(t, b, game.Player0, m)
	}
	if err := s.LoadData(context.Background(), b, game.Player0, plenty); !errors.Is(err, ErrScriptUnavailable) {
		t.Fatalf("LoadData err=%v want ErrScriptUnavailable", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestScript_LoadData(t *testing.T) {
	src := `
preferred = 1
function load_data(board, me)
  preferred = #board.cells - 63
end
function select_move(moves) return preferred + 2 end
`
	s, err := NewScriptString("load", src, seeded(1), 0, quiet())
	if err != nil {
		t.Fatalf("NewScriptString: %v", err)
	}
	defer s.Close()
	b, _ := game.NewBoard(8, game.Mode6)
	if err := s.LoadData(context.Background(), b, game.Player0, plenty); err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	m, err := s.SelectMove(context.Background(), b, game.Player0, plenty, nil)
	if err != nil {
		t.Fatalf("SelectMove: %v", err)
	}
	if want := rules.MovesForPlayer(b, game.Player0, nil)[2]; m != want {
		t.Fatalf("got %v want %v", m, want)
	}
}

func TestScript_MissingSelectMove(t *testing.T) {
	if _, err := NewScriptString("empty", "x = 1", nil, 0, quiet()); !errors.Is(err, ErrScriptMissingFunc) {
		t.Fatalf("err=%v want ErrScriptMissingFunc", err)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "first.lua")
	if err := os.WriteFile(path, []byte("function select_move(moves) return 1 end"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := Options{Rng: seeded(1), Logger: quiet(), Clicks: make(chan game.Point)}
	for _, name := range append(append([]string(nil), Names...), "lua:"+path) {
		s, err := New(name, opts)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if s.IsHuman() != (name == "human") {
			t.Errorf("%s: IsHuman=%v", name, s.IsHuman())
		}
		if name == "lua:"+path && s.Name() != "lua:first.lua" {
			t.Errorf("script name=%q", s.Name())
		}
	}
	if _, err := New("minimax", opts); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("err=%v want ErrUnknownStrategy", err)
	}
	if _, err := New("human", Options{}); err == nil {
		t.Fatalf("human without clicks should fail")
	}
}
