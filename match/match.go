// Package match runs a game between two strategies: it times each move,
// checks the returned move against the live board, applies it and decides
// when the game is over.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
	"github.com/brensch/twinsnake/strategy"
)

var ErrMatchOver = errors.New("match is over")

const (
	DefaultSize        = 10
	DefaultTimePerMove = 30 * time.Second
)

type State int

const (
	AwaitingFirstInput State = iota
	InProgress
	Over
)

func (s State) String() string {
	switch s {
	case AwaitingFirstInput:
		return "awaiting_first_input"
	case InProgress:
		return "in_progress"
	case Over:
		return "over"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reason explains why a match ended.
type Reason string

const (
	// ReasonNoMoves: the loser had no legal move on its turn.
	ReasonNoMoves Reason = "no_moves"
	// ReasonIllegalMove: the loser returned a move that is not legal on the live board.
	ReasonIllegalMove Reason = "illegal_move"
	// ReasonTimeout: the loser returned its move after the budget ran out.
	ReasonTimeout Reason = "timeout"
	// ReasonLoadTimeout: the loser overran the budget while preloading.
	ReasonLoadTimeout Reason = "load_timeout"
)

type Config struct {
	Size        int
	Mode        game.Mode
	TimePerMove time.Duration
	// Seed is carried for callers that derive strategy randomness per match.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.TimePerMove <= 0 {
		c.TimePerMove = DefaultTimePerMove
	}
	return c
}

// Turn describes one resolved turn. Move is the move the player returned,
// which was only applied if Over is false or Reason is ReasonNoMoves.
type Turn struct {
	MatchID  string
	Number   int
	Player   game.Player
	Strategy string
	Move     game.Move
	Elapsed  time.Duration
	// Mobility is each player's legal move count after the move.
	Mobility [2]int
	Over     bool
}

type Result struct {
	ID     string
	Winner game.Player
	Loser  game.Player
	Reason Reason
	Turns  int
	Moves  []game.Move
	// Players holds the strategy names, indexed by player.
	Players [2]string
}

// Observer is told about every applied move and the end of the match. Calls
// happen on the match goroutine; implementations must not block for long.
type Observer interface {
	MoveApplied(t Turn, b *game.Board)
	MatchOver(r Result, b *game.Board)
}

type Option func(*Match)

func WithLogger(l *slog.Logger) Option {
	return func(m *Match) { m.log = l }
}

func WithObserver(o Observer) Option {
	return func(m *Match) { m.observers = append(m.observers, o) }
}

// WithStartSignal holds a match that seats a human until the channel
// receives or is closed.
func WithStartSignal(start <-chan struct{}) Option {
	return func(m *Match) { m.start = start }
}

func WithID(id string) Option {
	return func(m *Match) { m.id = id }
}

// WithNow replaces the clock used by the stopwatch.
func WithNow(now func() time.Time) Option {
	return func(m *Match) { m.now = now }
}

type Match struct {
	id      string
	cfg     Config
	board   *game.Board
	players [2]strategy.Strategy
	toMove  game.Player
	state   State
	loaded  bool

	last   *game.Move
	moves  []game.Move
	result Result

	watch     *Stopwatch
	now       func() time.Time
	start     <-chan struct{}
	observers []Observer
	log       *slog.Logger
}

// New creates a match on a freshly seeded board. Player 0 moves first.
func New(cfg Config, p0, p1 strategy.Strategy, opts ...Option) (*Match, error) {
	cfg = cfg.withDefaults()
	b, err := game.NewBoard(cfg.Size, cfg.Mode)
	if err != nil {
		return nil, err
	}
	return newMatch(cfg, b, game.Player0, p0, p1, opts), nil
}

// NewFromBoard creates a match that continues from b with toMove to play.
// b is copied.
func NewFromBoard(b *game.Board, toMove game.Player, timePerMove time.Duration, p0, p1 strategy.Strategy, opts ...Option) (*Match, error) {
	if b == nil {
		return nil, errors.New("nil board")
	}
	if !toMove.Valid() {
		return nil, fmt.Errorf("%w: %d", game.ErrInvalidPlayer, toMove)
	}
	cfg := Config{Size: b.Size, Mode: b.Mode, TimePerMove: timePerMove}.withDefaults()
	return newMatch(cfg, b.Clone(), toMove, p0, p1, opts), nil
}

func newMatch(cfg Config, b *game.Board, toMove game.Player, p0, p1 strategy.Strategy, opts []Option) *Match {
	m := &Match{
		cfg:     cfg,
		board:   b,
		players: [2]strategy.Strategy{p0, p1},
		toMove:  toMove,
		state:   InProgress,
	}
	for _, o := range opts {
		o(m)
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("match", m.id)
	m.watch = NewStopwatch(cfg.TimePerMove, m.now)
	if m.start != nil && (p0.IsHuman() || p1.IsHuman()) {
		m.state = AwaitingFirstInput
	}
	if cfg.Size%2 != 0 {
		m.log.Warn("odd board size; the seed block sits up-left of centre", "size", cfg.Size)
	}
	return m
}

func (m *Match) ID() string          { return m.id }
func (m *Match) State() State        { return m.state }
func (m *Match) ToMove() game.Player { return m.toMove }

// Board returns a copy of the live board.
func (m *Match) Board() *game.Board { return m.board.Clone() }

// Result is only meaningful once State is Over.
func (m *Match) Result() Result { return m.result }

// Run plays the match to the end.
func (m *Match) Run(ctx context.Context) (Result, error) {
	m.log.Info("match starting",
		"size", m.cfg.Size, "mode", m.cfg.Mode.String(), "time_per_move", m.cfg.TimePerMove,
		"p0", m.players[0].Name(), "p1", m.players[1].Name())
	for m.state != Over {
		if _, err := m.Step(ctx); err != nil {
			return m.result, err
		}
	}
	return m.result, nil
}

// Step plays a single turn. The first call also waits for the start signal
// and lets both players preload. After the match is over Step returns
// ErrMatchOver and leaves the board untouched.
func (m *Match) Step(ctx context.Context) (Turn, error) {
	if m.state == Over {
		return Turn{}, ErrMatchOver
	}
	if err := m.prepare(ctx); err != nil {
		return Turn{}, err
	}
	if m.state == Over {
		return Turn{MatchID: m.id, Player: m.result.Loser, Over: true}, nil
	}

	p := m.toMove
	turn := Turn{MatchID: m.id, Number: len(m.moves) + 1, Player: p, Strategy: m.players[p].Name()}

	legal := rules.MovesForPlayer(m.board, p, nil)
	if len(legal) == 0 {
		turn.Over = true
		m.finish(p, ReasonNoMoves)
		return turn, nil
	}

	m.watch.Restart()
	move, err := m.players[p].SelectMove(ctx, m.board.Clone(), p, m.watch.Clock(), m.last)
	turn.Move = move
	turn.Elapsed = m.watch.Elapsed()
	if err != nil {
		return turn, fmt.Errorf("player %d (%s) select move: %w", p, turn.Strategy, err)
	}
	log := m.log.With("turn", turn.Number, "player", p, "strategy", turn.Strategy)

	if m.watch.Remaining() < 0 {
		log.Info("move too slow", "elapsed", turn.Elapsed)
		turn.Over = true
		m.finish(p, ReasonTimeout)
		return turn, nil
	}
	if !rules.Contains(legal, move) {
		log.Info("illegal move", "move", move.String())
		turn.Over = true
		m.finish(p, ReasonIllegalMove)
		return turn, nil
	}

	if err := rules.Apply(m.board, move, p); err != nil {
		m.state = Over
		return turn, fmt.Errorf("match %s aborted: %w", m.id, err)
	}
	m.moves = append(m.moves, move)
	last := move
	m.last = &last

	turn.Mobility = [2]int{rules.Mobility(m.board, game.Player0), rules.Mobility(m.board, game.Player1)}
	log.Debug("move applied", "move", move.String(), "elapsed", turn.Elapsed, "mobility", turn.Mobility)
	for _, o := range m.observers {
		o.MoveApplied(turn, m.board)
	}

	other := p.Other()
	if turn.Mobility[other] == 0 {
		turn.Over = true
		m.finish(other, ReasonNoMoves)
		return turn, nil
	}
	m.toMove = other
	return turn, nil
}

// prepare holds for the start signal and runs the load phase, once.
func (m *Match) prepare(ctx context.Context) error {
	if m.state == AwaitingFirstInput {
		m.log.Info("waiting for first input")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.start:
		}
		m.state = InProgress
	}
	if m.loaded {
		return nil
	}

	for i, s := range m.players {
		p := game.Player(i)
		m.watch.Restart()
		err := s.LoadData(ctx, m.board.Clone(), p, m.watch.Clock())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			m.log.Warn("load data failed", "player", p, "strategy", s.Name(), "err", err)
		}
		if m.watch.Remaining() < 0 {
			m.log.Info("load exceeded the move budget", "player", p, "elapsed", m.watch.Elapsed())
			m.loaded = true
			m.finish(p, ReasonLoadTimeout)
			return nil
		}
	}
	m.loaded = true
	return nil
}

func (m *Match) finish(loser game.Player, reason Reason) {
	m.state = Over
	m.result = Result{
		ID:      m.id,
		Winner:  loser.Other(),
		Loser:   loser,
		Reason:  reason,
		Turns:   len(m.moves),
		Moves:   append([]game.Move(nil), m.moves...),
		Players: [2]string{m.players[0].Name(), m.players[1].Name()},
	}
	m.log.Info("match over", "winner", m.result.Winner, "loser", loser, "reason", string(reason), "turns", m.result.Turns)
	for _, o := range m.observers {
		o.MatchOver(m.result, m.board)
	}
}
