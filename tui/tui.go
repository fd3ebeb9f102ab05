// Package tui is a terminal front end for a match. It draws the board after
// every move and turns cursor key presses into clicks for a human player.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/rules"
)

var (
	p0Style     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	p1Style     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	p0Trail     = lipgloss.NewStyle().Foreground(lipgloss.Color("25"))
	p1Trail     = lipgloss.NewStyle().Foreground(lipgloss.Color("130"))
	targetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
)

// BoardMsg carries the board after an applied move.
type BoardMsg struct {
	Turn  match.Turn
	Board *game.Board
}

// OverMsg carries the final result.
type OverMsg struct {
	Result match.Result
	Board  *game.Board
}

// RejectMsg reports a click on a cell the human cannot play.
type RejectMsg struct {
	At game.Coord
}

type Model struct {
	board  *game.Board
	toMove game.Player
	names  [2]string
	cursor game.Coord
	status string
	result *match.Result

	clicks  chan<- game.Point
	start   chan struct{}
	started bool
}

// NewModel shows b until the first move arrives. Cursor selections are sent
// on clicks, one screen unit per cell. If start is non-nil it is closed on
// the first key press.
func NewModel(b *game.Board, names [2]string, clicks chan<- game.Point, start chan struct{}) Model {
	h := b.Size / 2
	m := Model{
		board:   b.Clone(),
		names:   names,
		cursor:  game.Coord{Row: h, Col: h},
		clicks:  clicks,
		start:   start,
		started: start == nil,
		status:  "press any key to start",
	}
	if m.started {
		m.status = ""
	}
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case BoardMsg:
		m.board = msg.Board
		m.toMove = msg.Turn.Player.Other()
		m.status = fmt.Sprintf("turn %d: %s played %v", msg.Turn.Number, m.names[msg.Turn.Player], msg.Turn.Move)
	case OverMsg:
		m.board = msg.Board
		res := msg.Result
		m.result = &res
		m.status = fmt.Sprintf("%s wins (%s) after %d moves. press q to quit", m.names[res.Winner], res.Reason, res.Turns)
	case RejectMsg:
		m.status = fmt.Sprintf("%v is not a legal target", msg.At)
	}
	return m, nil
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	if !m.started {
		close(m.start)
		m.started = true
		m.status = "started"
		return m, nil
	}

	switch k.String() {
	case "up", "k":
		m.cursor.Row--
	case "down", "j":
		m.cursor.Row++
	case "left", "h":
		m.cursor.Col--
	case "right", "l":
		m.cursor.Col++
	case "enter", " ", "space":
		if m.result != nil || m.clicks == nil {
			return m, nil
		}
		select {
		case m.clicks <- game.Point{X: m.cursor.Col, Y: m.cursor.Row}:
			m.status = fmt.Sprintf("sent %v", m.cursor)
		default:
			m.status = "not your turn"
		}
		return m, nil
	}
	m.cursor.Row = clamp(m.cursor.Row, 0, m.board.Size-1)
	m.cursor.Col = clamp(m.cursor.Col, 0, m.board.Size-1)
	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("twinsnake %dx%d mode %s   %s vs %s",
		m.board.Size, m.board.Size, m.board.Mode, p0Style.Render("O "+m.names[0]), p1Style.Render("X "+m.names[1]))))
	sb.WriteString("\n")

	targets := map[game.Coord]bool{}
	if m.result == nil {
		for _, mv := range rules.MovesForPlayer(m.board, m.toMove, nil) {
			targets[mv.Target] = true
		}
	}
	text := strings.Split(strings.TrimRight(m.board.String(), "\n"), "\n")
	for r, line := range text {
		for c := 0; c < len(line); c++ {
			at := game.Coord{Row: r, Col: c}
			cell := glyph(line[c], targets[at])
			if at == m.cursor && m.started {
				cell = cursorStyle.Render(cell)
			}
			sb.WriteString(cell)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}

	sb.WriteString(statusStyle.Render(m.status))
	sb.WriteString("\narrows/hjkl move, enter plays, q quits\n")
	return sb.String()
}

func glyph(ch byte, target bool) string {
	switch ch {
	case 'O':
		return p0Style.Render("O")
	case 'X':
		return p1Style.Render("X")
	case 'o':
		return p0Trail.Render("o")
	case '*':
		return p1Trail.Render("*")
	}
	if target {
		return targetStyle.Render("+")
	}
	return "."
}

// Sender is the part of tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards match events to a running program.
type Observer struct {
	P Sender
}

func (o Observer) MoveApplied(t match.Turn, b *game.Board) {
	o.P.Send(BoardMsg{Turn: t, Board: b.Clone()})
}

func (o Observer) MatchOver(r match.Result, b *game.Board) {
	o.P.Send(OverMsg{Result: r, Board: b.Clone()})
}

// Reject returns a Human OnReject callback that shows the rejection.
func Reject(p Sender) func(game.Coord) {
	return func(c game.Coord) { p.Send(RejectMsg{At: c}) }
}
