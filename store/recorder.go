package store

import (
	"sync"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
)

// Recorder collects the archive rows of one match as it is played. Attach it
// with match.WithObserver; Rows is complete once the match is over.
type Recorder struct {
	mu   sync.Mutex
	rows []ArchiveTurnRow
	done bool
	// OnDone, if set, receives the finished rows.
	OnDone func([]ArchiveTurnRow)
}

func (r *Recorder) MoveApplied(t match.Turn, b *game.Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, ArchiveTurnRow{
		GameID:    t.MatchID,
		Turn:      int32(t.Number),
		Size:      int32(b.Size),
		Mode:      b.Mode.String(),
		Player:    int32(t.Player),
		Strategy:  t.Strategy,
		TargetRow: int32(t.Move.Target.Row),
		TargetCol: int32(t.Move.Target.Col),
		Heading:   int32(t.Move.Heading),
		Mobility0: int32(t.Mobility[0]),
		Mobility1: int32(t.Mobility[1]),
		ElapsedUs: t.Elapsed.Microseconds(),
	})
}

func (r *Recorder) MatchOver(res match.Result, b *game.Board) {
	r.mu.Lock()
	if len(r.rows) == 0 {
		r.rows = append(r.rows, ArchiveTurnRow{
			GameID: res.ID,
			Size:   int32(b.Size),
			Mode:   b.Mode.String(),
			Player: -1,
		})
	}
	for i := range r.rows {
		r.rows[i].Winner = int32(res.Winner)
		r.rows[i].Reason = string(res.Reason)
	}
	r.done = true
	rows := append([]ArchiveTurnRow(nil), r.rows...)
	onDone := r.OnDone
	r.mu.Unlock()

	if onDone != nil {
		onDone(rows)
	}
}

// Rows returns a copy of the rows recorded so far.
func (r *Recorder) Rows() []ArchiveTurnRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ArchiveTurnRow(nil), r.rows...)
}

// Done reports whether the match has ended.
func (r *Recorder) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
