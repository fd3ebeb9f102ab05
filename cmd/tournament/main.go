// Command tournament plays many AI matches concurrently and archives them to
// Parquet. Match IDs are derived from the seed and settings, so a rerun with
// the same flags skips matches that already reached an archive file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/twinsnake/config"
	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/logging"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/store"
	"github.com/brensch/twinsnake/strategy"
)

type Config struct {
	Games       int
	Size        int
	Modes       []game.Mode
	TimePerMove time.Duration
	Seed        int64
	Players     [2]string
	Workers     int
	OutDir      string
	LogPath     string
	FlushGames  int
}

// Standings counts wins per strategy name and end reasons.
type Standings struct {
	Played  int
	Skipped int
	Wins    map[string]int
	Reasons map[match.Reason]int
	Files   []string
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	games := flag.Int("games", config.EnvInt("GAMES", 100), "Number of matches to play")
	size := flag.Int("size", config.EnvInt("SIZE", match.DefaultSize), "Board side length")
	modes := flag.String("modes", config.EnvOr("MODES", "6"), "Comma-separated game modes, cycled per match")
	perMove := flag.Duration("time-per-move", config.EnvDuration("TIME_PER_MOVE", time.Second), "Time budget per move")
	seed := flag.Int64("seed", config.EnvInt64("SEED", 1), "Base seed; match i uses seed+i")
	p0 := flag.String("p0", config.EnvOr("P0", "onestep"), "First strategy")
	p1 := flag.String("p1", config.EnvOr("P1", "random"), "Second strategy")
	workers := flag.Int("workers", config.EnvInt("WORKERS", runtime.NumCPU()), "Matches played at once")
	outDir := flag.String("out-dir", config.EnvOr("OUT_DIR", "data"), "Directory for archive .parquet files")
	logPath := flag.String("match-log", config.EnvOr("MATCH_LOG", filepath.Join("data", "written_matches.log")), "Append-only log of archived match IDs")
	flushGames := flag.Int("flush-games", config.EnvInt("FLUSH_GAMES", 500), "Finalize an archive file after this many matches")
	logFormat := flag.String("log-format", config.EnvOr("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.EnvOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("Bad logging flags: %v", err)
	}
	slog.SetDefault(logger)

	var ms []game.Mode
	for _, s := range strings.Split(*modes, ",") {
		m, err := game.ParseMode(strings.TrimSpace(s))
		if err != nil {
			log.Fatalf("Bad -modes: %v", err)
		}
		ms = append(ms, m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := Config{
		Games: *games, Size: *size, Modes: ms, TimePerMove: *perMove, Seed: *seed,
		Players: [2]string{*p0, *p1}, Workers: *workers,
		OutDir: *outDir, LogPath: *logPath, FlushGames: *flushGames,
	}
	st, err := Run(ctx, cfg, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Tournament failed: %v", err)
	}

	fmt.Printf("played %d, skipped %d\n", st.Played, st.Skipped)
	names := make([]string, 0, len(st.Wins))
	for n := range st.Wins {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-12s %d wins\n", n, st.Wins[n])
	}
	for r, n := range st.Reasons {
		fmt.Printf("  %-12s %d\n", r, n)
	}
}

// MatchID is the stable ID of match i, so reruns can recognise it.
func MatchID(cfg Config, i int) string {
	mode := cfg.Modes[i%len(cfg.Modes)]
	key := fmt.Sprintf("twinsnake/%d/%d/%s/%s/%s/%d", cfg.Seed+int64(i), cfg.Size, mode, cfg.Players[0], cfg.Players[1], i)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

type finished struct {
	id     string
	rows   []store.ArchiveTurnRow
	result match.Result
}

// Run plays cfg.Games matches on a bounded pool of workers. Strategies swap
// seats on odd matches. Finished matches stream into archive files; an
// interrupted run still finalizes what it has.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) (Standings, error) {
	st := Standings{Wins: map[string]int{}, Reasons: map[match.Reason]int{}}
	if cfg.Games <= 0 {
		return st, nil
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = []game.Mode{game.Mode6}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FlushGames <= 0 {
		cfg.FlushGames = 500
	}
	for _, name := range cfg.Players {
		if name == "human" {
			return st, fmt.Errorf("tournaments only seat AI strategies")
		}
	}

	written, err := store.OpenMatchLog(cfg.LogPath)
	if err != nil {
		return st, err
	}
	defer written.Close()

	results := make(chan finished, cfg.Workers)
	var collectErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		collectErr = collect(cfg, written, results, &st, logger)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Games; i++ {
		id := MatchID(cfg, i)
		if written.Has(id) {
			st.Skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			f, err := playOne(gctx, cfg, i, id, logger)
			if err != nil {
				return err
			}
			select {
			case results <- f:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	runErr := g.Wait()
	close(results)
	wg.Wait()

	if runErr != nil {
		return st, runErr
	}
	return st, collectErr
}

func playOne(ctx context.Context, cfg Config, i int, id string, logger *slog.Logger) (finished, error) {
	names := cfg.Players
	if i%2 == 1 {
		names[0], names[1] = names[1], names[0]
	}
	mlog := logger.With("match", id)

	var players [2]strategy.Strategy
	for p, name := range names {
		s, err := strategy.New(name, strategy.Options{
			Rng:    rand.New(rand.NewSource(cfg.Seed + int64(i)*2 + int64(p))),
			Logger: mlog,
		})
		if err != nil {
			return finished{}, fmt.Errorf("match %d player %d: %w", i, p, err)
		}
		if c, ok := s.(interface{ Close() error }); ok {
			defer c.Close()
		}
		players[p] = s
	}

	rec := &store.Recorder{}
	m, err := match.New(match.Config{
		Size: cfg.Size, Mode: cfg.Modes[i%len(cfg.Modes)], TimePerMove: cfg.TimePerMove, Seed: cfg.Seed + int64(i),
	}, players[0], players[1], match.WithID(id), match.WithLogger(logger), match.WithObserver(rec))
	if err != nil {
		return finished{}, err
	}
	res, err := m.Run(ctx)
	if err != nil {
		return finished{}, err
	}
	return finished{id: id, rows: rec.Rows(), result: res}, nil
}

func collect(cfg Config, written *store.MatchLog, results <-chan finished, st *Standings, logger *slog.Logger) error {
	var bw *store.BatchWriter
	var pending []string

	flush := func(reason string) error {
		if bw == nil {
			return nil
		}
		path, rows, games, err := bw.Finalize()
		bw = nil
		if err != nil {
			return fmt.Errorf("flush (%s): %w", reason, err)
		}
		if path != "" {
			st.Files = append(st.Files, path)
		}
		if err := written.AddMany(pending); err != nil {
			// The archive file is already in place; the next run plays these again.
			logger.Warn("match log append failed", "error", err)
		}
		logger.Info("flushed batch", "reason", reason, "games", games, "rows", rows, "path", path)
		pending = pending[:0]
		return nil
	}

	var firstErr error
	for f := range results {
		if firstErr != nil {
			continue
		}
		if bw == nil {
			var err error
			if bw, err = store.NewBatchWriter(cfg.OutDir); err != nil {
				firstErr = err
				continue
			}
		}
		if err := bw.WriteGame(f.rows); err != nil {
			firstErr = err
			continue
		}
		pending = append(pending, f.id)
		st.Played++
		st.Wins[f.result.Players[f.result.Winner]]++
		st.Reasons[f.result.Reason]++
		if bw.BufferedGames() >= cfg.FlushGames {
			if err := flush("count"); err != nil {
				firstErr = err
			}
		}
	}
	if err := flush("final"); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
