package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func TestModel_FirstKeyStarts(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	start := make(chan struct{})
	m := NewModel(b, [2]string{"human", "onestep"}, make(chan game.Point, 1), start)

	m = press(t, m, runes("x"))
	select {
	case <-start:
	default:
		t.Fatalf("start signal not closed")
	}
	// A second key must not close the channel again.
	m = press(t, m, runes("j"))
	if m.cursor != (game.Coord{Row: 5, Col: 4}) {
		t.Fatalf("cursor=%v", m.cursor)
	}
}

func TestModel_CursorAndClick(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	clicks := make(chan game.Point, 1)
	m := NewModel(b, [2]string{"human", "random"}, clicks, nil)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, runes("l"), tea.KeyMsg{Type: tea.KeyEnter})
	select {
	case p := <-clicks:
		if got := game.CellForPoint(p, 1); got != (game.Coord{Row: 3, Col: 5}) {
			t.Fatalf("clicked %v", got)
		}
	default:
		t.Fatalf("no click sent")
	}

	for i := 0; i < 20; i++ {
		m = press(t, m, runes("h"), runes("k"))
	}
	if m.cursor != (game.Coord{}) {
		t.Fatalf("cursor not clamped: %v", m.cursor)
	}

	// Nobody is reading: the click is dropped, not blocked on.
	clicks <- game.Point{}
	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !strings.Contains(m.status, "not your turn") {
		t.Fatalf("status=%q", m.status)
	}
}

func TestModel_MessagesAndView(t *testing.T) {
	b, _ := game.NewBoard(8, game.Mode6)
	m := NewModel(b, [2]string{"random", "onestep"}, nil, nil)

	after := b.Clone()
	mv := game.Move{Target: game.Coord{Row: 3, Col: 4}, Heading: game.East}
	after.SetCell(mv.Target, game.Player0Mark)
	after.Ends[0][0] = game.End{At: mv.Target, Heading: mv.Heading}

	next, _ := m.Update(BoardMsg{Turn: match.Turn{Number: 1, Player: game.Player0, Move: mv}, Board: after})
	m = next.(Model)
	if m.toMove != game.Player1 || !strings.Contains(m.status, "random played") {
		t.Fatalf("toMove=%d status=%q", m.toMove, m.status)
	}
	view := m.View()
	t.Logf("view:\n%s", view)
	if !strings.Contains(view, "random") || !strings.Contains(view, "+") || !strings.Contains(view, "o") {
		t.Fatalf("view missing pieces")
	}

	next, _ = m.Update(RejectMsg{At: game.Coord{Row: 0, Col: 0}})
	m = next.(Model)
	if !strings.Contains(m.status, "(0,0)") {
		t.Fatalf("status=%q", m.status)
	}

	next, _ = m.Update(OverMsg{Result: match.Result{Winner: game.Player1, Reason: match.ReasonNoMoves, Turns: 9}, Board: after})
	m = next.(Model)
	if !strings.Contains(m.status, "onestep wins") || strings.Contains(m.View(), "+") {
		t.Fatalf("status=%q", m.status)
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("q did not quit")
	}
}

type fakeSender struct{ msgs []tea.Msg }

func (f *fakeSender) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestObserver(t *testing.T) {
	s := &fakeSender{}
	o := Observer{P: s}
	b, _ := game.NewBoard(6, game.Mode10)
	o.MoveApplied(match.Turn{Number: 1}, b)
	o.MatchOver(match.Result{ID: "x"}, b)
	Reject(s)(game.Coord{Row: 1, Col: 1})

	if len(s.msgs) != 3 {
		t.Fatalf("sent %d messages", len(s.msgs))
	}
	bm, ok := s.msgs[0].(BoardMsg)
	if !ok || bm.Board == b {
		t.Fatalf("board message should carry a copy")
	}
	if _, ok := s.msgs[1].(OverMsg); !ok {
		t.Fatalf("second message %T", s.msgs[1])
	}
	if _, ok := s.msgs[2].(RejectMsg); !ok {
		t.Fatalf("third message %T", s.msgs[2])
	}
}
