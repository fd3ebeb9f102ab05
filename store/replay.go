package store

import (
	"fmt"
	"sort"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/rules"
)

// ReplayedGame is an archived match rebuilt move by move.
type ReplayedGame struct {
	ID      string
	Size    int
	Mode    game.Mode
	Turns   int
	Winner  game.Player
	Reason  string
	Players [2]string
	Board   *game.Board
	// Problems lists every way the archive disagrees with the rules.
	Problems []string
}

// Replay groups rows by game, replays each game from the seeded board and
// checks every move, the recorded mobilities and the recorded outcome.
// Games must have started from the standard seed.
// Games are returned in order of first appearance. Only rows that cannot be
// interpreted at all, such as an unknown mode, produce an error.
func Replay(rows []ArchiveTurnRow) ([]ReplayedGame, error) {
	var order []string
	byGame := make(map[string][]ArchiveTurnRow)
	for _, r := range rows {
		if _, ok := byGame[r.GameID]; !ok {
			order = append(order, r.GameID)
		}
		byGame[r.GameID] = append(byGame[r.GameID], r)
	}

	out := make([]ReplayedGame, 0, len(order))
	for _, id := range order {
		g, err := replayGame(id, byGame[id])
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func replayGame(id string, rows []ArchiveTurnRow) (ReplayedGame, error) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Turn < rows[j].Turn })
	first := rows[0]

	mode, err := game.ParseMode(first.Mode)
	if err != nil {
		return ReplayedGame{}, fmt.Errorf("game %s: %w", id, err)
	}
	b, err := game.NewBoard(int(first.Size), mode)
	if err != nil {
		return ReplayedGame{}, fmt.Errorf("game %s: %w", id, err)
	}

	g := ReplayedGame{
		ID:     id,
		Size:   int(first.Size),
		Mode:   mode,
		Winner: game.Player(first.Winner),
		Reason: first.Reason,
		Board:  b,
	}
	problem := func(format string, args ...any) {
		g.Problems = append(g.Problems, fmt.Sprintf(format, args...))
	}

	for _, r := range rows {
		if r.Player < 0 {
			continue
		}
		p := game.Player(r.Player)
		if !p.Valid() {
			problem("turn %d: invalid player %d", r.Turn, r.Player)
			return g, nil
		}
		if g.Players[p] == "" {
			g.Players[p] = r.Strategy
		}
		m := game.Move{
			Target:  game.Coord{Row: int(r.TargetRow), Col: int(r.TargetCol)},
			Heading: game.Direction(r.Heading),
		}
		if !rules.Contains(rules.MovesForPlayer(b, p, nil), m) {
			problem("turn %d: %v is not legal for player %d", r.Turn, m, p)
			return g, nil
		}
		if err := rules.Apply(b, m, p); err != nil {
			problem("turn %d: %v", r.Turn, err)
			return g, nil
		}
		g.Turns++
		got := [2]int32{int32(rules.Mobility(b, game.Player0)), int32(rules.Mobility(b, game.Player1))}
		if got != [2]int32{r.Mobility0, r.Mobility1} {
			problem("turn %d: mobility %v, archive says [%d %d]", r.Turn, got, r.Mobility0, r.Mobility1)
		}
		if r.Winner != first.Winner || r.Reason != first.Reason {
			problem("turn %d: outcome differs from the first row", r.Turn)
		}
	}

	if !g.Winner.Valid() {
		problem("invalid winner %d", first.Winner)
		return g, nil
	}
	if g.Reason == string(match.ReasonNoMoves) && rules.Mobility(b, g.Winner.Other()) != 0 {
		problem("archive says player %d ran out of moves but it has %d", g.Winner.Other(), rules.Mobility(b, g.Winner.Other()))
	}
	return g, nil
}
