package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/strategy"
)

// TraceRow is one candidate scored by the one-step search.
type TraceRow struct {
	GameID    string  `parquet:"game_id,dict" json:"game_id"`
	Turn      int32   `parquet:"turn" json:"turn"`
	Player    int32   `parquet:"player" json:"player"`
	Position  int32   `parquet:"position" json:"position"`
	TargetRow int32   `parquet:"target_row" json:"target_row"`
	TargetCol int32   `parquet:"target_col" json:"target_col"`
	Heading   int32   `parquet:"heading" json:"heading"`
	Mine      int32   `parquet:"mine" json:"mine"`
	Theirs    int32   `parquet:"theirs" json:"theirs"`
	Score     float32 `parquet:"score" json:"score"`
	Best      bool    `parquet:"best" json:"best"`
	ElapsedUs int64   `parquet:"elapsed_us" json:"elapsed_us"`
}

// TraceCollector gathers search traces for one match. Hook it into each
// OneStep player with Hook and attach it to the match as an observer so it
// can follow the turn number.
type TraceCollector struct {
	GameID string

	mu   sync.Mutex
	turn int32
	rows []TraceRow
}

func NewTraceCollector(gameID string) *TraceCollector {
	return &TraceCollector{GameID: gameID, turn: 1}
}

// Hook returns a strategy.OneStep Trace function for player p.
func (c *TraceCollector) Hook(p game.Player) func(strategy.Scored) {
	return func(s strategy.Scored) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.rows = append(c.rows, TraceRow{
			GameID:    c.GameID,
			Turn:      c.turn,
			Player:    int32(p),
			Position:  int32(s.Position),
			TargetRow: int32(s.Move.Target.Row),
			TargetCol: int32(s.Move.Target.Col),
			Heading:   int32(s.Move.Heading),
			Mine:      int32(s.Mine),
			Theirs:    int32(s.Theirs),
			Score:     float32(s.Score),
			Best:      s.Best,
			ElapsedUs: s.Elapsed.Microseconds(),
		})
	}
}

func (c *TraceCollector) MoveApplied(t match.Turn, _ *game.Board) {
	c.mu.Lock()
	c.turn = int32(t.Number) + 1
	c.mu.Unlock()
}

func (c *TraceCollector) MatchOver(match.Result, *game.Board) {}

func (c *TraceCollector) Rows() []TraceRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TraceRow(nil), c.rows...)
}

// WriteTraceParquet writes the trace of one match into outDir and returns the
// file path.
func WriteTraceParquet(outDir, gameID string, rows []TraceRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	finalPath := filepath.Join(outDir, fmt.Sprintf("trace_%s.parquet", gameID))
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "twinsnake_trace_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}
