package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/rules"
)

var (
	ErrScriptMissingFunc = errors.New("script does not define select_move")
	// ErrScriptUnavailable means the script could not be reloaded after an
	// interrupted call. Every later turn plays the random fallback.
	ErrScriptUnavailable = errors.New("script state is unavailable")
)

// Script is a strategy written in Lua. The script must define
//
//	function select_move(moves, board, me) ... return index end
//
// and may define load_data(board, me). moves is a list of {row, col, heading}
// tables and the returned index is 1-based. board has size, mode, cells (a flat
// row-major list, 0 for empty, 1 or 2 for a player's mark) and ends, where
// ends[me+1] holds that player's two {row, col, heading} records. Rows, columns
// and headings use the game's 0-based values.
//
// A script that errors, returns a bad index or runs past the budget forfeits
// its choice for the turn and the random fallback is played.
type Script struct {
	base
	path string
	src  string

	mu sync.Mutex
	L  *lua.LState
}

// NewScript loads the script at path.
func NewScript(path string, rng *rand.Rand, margin time.Duration, log *slog.Logger) (*Script, error) {
	s := &Script{base: newBase("lua:"+filepath.Base(path), rng, margin, log), path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewScriptString builds a Script from source text. name is used in logs.
func NewScriptString(name, src string, rng *rand.Rand, margin time.Duration, log *slog.Logger) (*Script, error) {
	s := &Script{base: newBase("lua:"+name, rng, margin, log), src: src}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Script) open() error {
	L := lua.NewState()
	var err error
	if s.path != "" {
		err = L.DoFile(s.path)
	} else {
		err = L.DoString(s.src)
	}
	if err != nil {
		L.Close()
		return fmt.Errorf("load %s: %w", s.name, err)
	}
	if L.GetGlobal("select_move").Type() != lua.LTFunction {
		L.Close()
		return fmt.Errorf("load %s: %w", s.name, ErrScriptMissingFunc)
	}
	s.L = L
	return nil
}

// Close releases the Lua state.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
	return nil
}

func (s *Script) LoadData(ctx context.Context, board *game.Board, me game.Player, clock Clock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.L == nil {
		return fmt.Errorf("%s load_data: %w", s.name, ErrScriptUnavailable)
	}
	fn := s.L.GetGlobal("load_data")
	if fn.Type() != lua.LTFunction {
		return s.base.LoadData(ctx, board, me, clock)
	}
	_, err := s.call(ctx, clock, fn, boardTable(s.L, board), lua.LNumber(me))
	if err != nil {
		return fmt.Errorf("%s load_data: %w", s.name, err)
	}
	return nil
}

func (s *Script) SelectMove(ctx context.Context, board *game.Board, me game.Player, clock Clock, _ *game.Move) (game.Move, error) {
	if err := ctx.Err(); err != nil {
		return game.Move{}, err
	}
	fallback, err := s.candidates(board, me)
	if err != nil {
		return game.Move{}, err
	}
	if s.lowOnTime(clock) {
		return fallback[0], nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.L == nil {
		s.log.Warn("script unavailable, playing fallback", "player", me)
		return fallback[0], nil
	}
	moves := rules.MovesForPlayer(board, me, nil)
	list := s.L.NewTable()
	for _, m := range moves {
		list.Append(moveTable(s.L, m))
	}

	ret, err := s.call(ctx, clock, s.L.GetGlobal("select_move"), list, boardTable(s.L, board), lua.LNumber(me))
	if err != nil {
		if ctx.Err() != nil {
			return game.Move{}, ctx.Err()
		}
		s.log.Warn("script failed, playing fallback", "player", me, "err", err)
		return fallback[0], nil
	}

	n, ok := ret.(lua.LNumber)
	idx := int(n)
	if !ok || lua.LNumber(idx) != n || idx < 1 || idx > len(moves) {
		s.log.Warn("script returned a bad index, playing fallback", "player", me, "value", ret.String(), "moves", len(moves))
		return fallback[0], nil
	}
	return moves[idx-1], nil
}

// call runs fn with a deadline of the remaining budget minus the margin. A
// state interrupted by its deadline is rebuilt before the next call.
func (s *Script) call(ctx context.Context, clock Clock, fn lua.LValue, args ...lua.LValue) (lua.LValue, error) {
	if clock != nil {
		_, remaining := clock()
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, remaining-s.margin)
		defer cancel()
	}

	s.L.SetContext(ctx)
	err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	s.L.RemoveContext()
	if err != nil {
		if ctx.Err() != nil {
			s.L.Close()
			s.L = nil
			if openErr := s.open(); openErr != nil {
				s.log.Error("reloading script", "err", openErr)
				return lua.LNil, errors.Join(err, fmt.Errorf("%w: %w", ErrScriptUnavailable, openErr))
			}
		}
		return lua.LNil, err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}

func moveTable(L *lua.LState, m game.Move) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("row", lua.LNumber(m.Target.Row))
	t.RawSetString("col", lua.LNumber(m.Target.Col))
	t.RawSetString("heading", lua.LNumber(m.Heading))
	return t
}

func boardTable(L *lua.LState, b *game.Board) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("size", lua.LNumber(b.Size))
	t.RawSetString("mode", lua.LString(b.Mode.String()))

	cells := L.CreateTable(len(b.Cells), 0)
	for _, c := range b.Cells {
		cells.Append(lua.LNumber(c))
	}
	t.RawSetString("cells", cells)

	ends := L.NewTable()
	for p := range b.Ends {
		pe := L.NewTable()
		for _, e := range b.Ends[p] {
			et := L.NewTable()
			et.RawSetString("row", lua.LNumber(e.At.Row))
			et.RawSetString("col", lua.LNumber(e.At.Col))
			et.RawSetString("heading", lua.LNumber(e.Heading))
			pe.Append(et)
		}
		ends.Append(pe)
	}
	t.RawSetString("ends", ends)
	return t
}
