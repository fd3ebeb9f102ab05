// Command twinsnake plays one match between two strategies and shows it as
// text, in the terminal, or in a browser.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/brensch/twinsnake/config"
	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/logging"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/remote"
	"github.com/brensch/twinsnake/store"
	"github.com/brensch/twinsnake/strategy"
	"github.com/brensch/twinsnake/tui"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	size := flag.Int("size", config.EnvInt("SIZE", match.DefaultSize), "Board side length (at least 4)")
	modeName := flag.String("mode", config.EnvOr("MODE", "6"), "Game mode: 6, 10 or 14")
	perMove := flag.Duration("time-per-move", config.EnvDuration("TIME_PER_MOVE", match.DefaultTimePerMove), "Time budget per move")
	seed := flag.Int64("seed", config.EnvInt64("SEED", time.Now().UnixNano()), "Random seed")
	p0Name := flag.String("p0", config.EnvOr("P0", "human"), "Player 0 strategy: random, onestep, human or lua:<path>")
	p1Name := flag.String("p1", config.EnvOr("P1", "onestep"), "Player 1 strategy")
	weight := flag.Float64("opponent-weight", 0, "How much the one-step strategy values cutting the opponent's moves")
	ui := flag.String("ui", config.EnvOr("UI", "text"), "Display: text, tui or web")
	listen := flag.String("listen", config.EnvOr("LISTEN", "127.0.0.1:8080"), "HTTP listen address for -ui web")
	cellSize := flag.Int("cell-size", config.EnvInt("CELL_SIZE", remote.DefaultCellSize), "Pixel size of a board cell for -ui web")
	outDir := flag.String("out-dir", config.EnvOr("OUT_DIR", ""), "Archive the finished match into this directory (empty disables)")
	traceOut := flag.String("trace-out", config.EnvOr("TRACE_OUT", ""), "Write one-step search traces into this directory (empty disables)")
	logFormat := flag.String("log-format", config.EnvOr("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.EnvOr("LOG_LEVEL", "info"), "Log level")
	logFile := flag.String("log-file", config.EnvOr("LOG_FILE", "twinsnake.log"), "Log file used while -ui tui owns the terminal")
	flag.Parse()

	mode, err := game.ParseMode(*modeName)
	if err != nil {
		log.Fatalf("Bad -mode: %v", err)
	}
	board, err := game.NewBoard(*size, mode)
	if err != nil {
		log.Fatalf("Bad -size: %v", err)
	}

	var logOut io.Writer = os.Stderr
	if *ui == "tui" {
		f, err := tea.LogToFile(*logFile, "twinsnake")
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("Bad logging flags: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names := [2]string{*p0Name, *p1Name}
	id := uuid.NewString()
	opts := []match.Option{match.WithLogger(logger), match.WithID(id)}
	sopts := strategy.Options{Logger: logger, OpponentWeight: *weight}

	var d *display
	switch *ui {
	case "text":
		d = newTextDisplay(ctx, names)
	case "tui":
		d = newTUIDisplay(board, names)
	case "web":
		d = newWebDisplay(board, names, *listen, *cellSize, *outDir, logger)
	default:
		log.Fatalf("Bad -ui %q (want text, tui or web)", *ui)
	}
	defer d.close()
	sopts.Clicks, sopts.Locate, sopts.OnReject = d.clicks, d.locate, d.reject
	opts = append(opts, match.WithObserver(d.observer), match.WithStartSignal(d.start))

	var players [2]strategy.Strategy
	for p, name := range names {
		sopts.Rng = rand.New(rand.NewSource(*seed + int64(p)))
		s, err := strategy.New(name, sopts)
		if err != nil {
			log.Fatalf("Player %d: %v", p, err)
		}
		if c, ok := s.(io.Closer); ok {
			defer c.Close()
		}
		players[p] = s
	}

	var rec *store.Recorder
	if *outDir != "" {
		rec = &store.Recorder{}
		opts = append(opts, match.WithObserver(rec))
	}
	var trace *store.TraceCollector
	if *traceOut != "" {
		trace = store.NewTraceCollector(id)
		for p, s := range players {
			if one, ok := s.(*strategy.OneStep); ok {
				one.Trace = trace.Hook(game.Player(p))
			}
		}
		opts = append(opts, match.WithObserver(trace))
	}

	m, err := match.New(match.Config{Size: *size, Mode: mode, TimePerMove: *perMove, Seed: *seed}, players[0], players[1], opts...)
	if err != nil {
		log.Fatalf("Failed to create match: %v", err)
	}

	res, err := d.run(ctx, m)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("match aborted", "error", err)
	}

	if rec != nil && rec.Done() {
		path, err := store.WriteArchiveBatchAtomic(*outDir, rec.Rows())
		if err != nil {
			logger.Error("archive failed", "error", err)
		} else {
			logger.Info("archived match", "path", path)
		}
	}
	if trace != nil {
		path, err := store.WriteTraceParquet(*traceOut, id, trace.Rows())
		if err != nil {
			logger.Error("trace failed", "error", err)
		} else {
			logger.Info("wrote search trace", "path", path)
		}
	}
	if m.State() == match.Over {
		fmt.Printf("%s (player %d) wins: %s after %d moves\n", names[res.Winner], res.Winner, res.Reason, res.Turns)
	}
}

// display is one way of showing a match and collecting human clicks.
type display struct {
	observer match.Observer
	clicks   <-chan game.Point
	locate   func(game.Point) game.Coord
	reject   func(game.Coord)
	start    <-chan struct{}
	run      func(context.Context, *match.Match) (match.Result, error)
	close    func()
}

func newTextDisplay(ctx context.Context, names [2]string) *display {
	clicks := make(chan game.Point, 1)
	start := make(chan struct{})
	go readStdin(ctx, clicks, start)
	return &display{
		observer: textObserver{names: names, w: os.Stdout},
		clicks:   clicks,
		reject: func(c game.Coord) {
			fmt.Printf("%v is not a legal target\n", c)
		},
		start: start,
		run: func(ctx context.Context, m *match.Match) (match.Result, error) {
			if m.State() == match.AwaitingFirstInput {
				fmt.Println("press enter to start, then type moves as: row col")
			}
			fmt.Print(m.Board().String())
			return m.Run(ctx)
		},
		close: func() {},
	}
}

// readStdin closes start on the first line and turns every "row col" line
// after that into a click at one unit per cell.
func readStdin(ctx context.Context, clicks chan<- game.Point, start chan struct{}) {
	sc := bufio.NewScanner(os.Stdin)
	started := false
	for sc.Scan() {
		if !started {
			close(start)
			started = true
			continue
		}
		var row, col int
		if _, err := fmt.Sscanf(strings.TrimSpace(sc.Text()), "%d %d", &row, &col); err != nil {
			fmt.Println("type moves as: row col")
			continue
		}
		select {
		case clicks <- game.Point{X: col, Y: row}:
		case <-ctx.Done():
			return
		}
	}
}

type textObserver struct {
	names [2]string
	w     io.Writer
}

func (o textObserver) MoveApplied(t match.Turn, b *game.Board) {
	fmt.Fprintf(o.w, "turn %d: %s played %v (mobility %d/%d)\n%s", t.Number, o.names[t.Player], t.Move, t.Mobility[0], t.Mobility[1], b)
}

func (o textObserver) MatchOver(r match.Result, _ *game.Board) {
	fmt.Fprintf(o.w, "game over: %s\n", r.Reason)
}

func newTUIDisplay(b *game.Board, names [2]string) *display {
	clicks := make(chan game.Point, 1)
	start := make(chan struct{})
	prog := tea.NewProgram(tui.NewModel(b, names, clicks, start), tea.WithAltScreen())
	return &display{
		observer: tui.Observer{P: prog},
		clicks:   clicks,
		reject:   tui.Reject(prog),
		start:    start,
		run: func(ctx context.Context, m *match.Match) (match.Result, error) {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			type outcome struct {
				res match.Result
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				res, err := m.Run(ctx)
				done <- outcome{res, err}
			}()
			if _, err := prog.Run(); err != nil {
				cancel()
				<-done
				return match.Result{}, fmt.Errorf("terminal ui: %w", err)
			}
			// The window closed; stop a match that is still running.
			cancel()
			o := <-done
			return o.res, o.err
		},
		close: func() {},
	}
}

func newWebDisplay(b *game.Board, names [2]string, listen string, cellSize int, archiveDir string, logger *slog.Logger) *display {
	srv := remote.NewServer(b, names, logger)
	srv.CellSize = cellSize
	srv.ArchiveDir = archiveDir
	hs := &http.Server{Addr: listen, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()
	logger.Info("serving board", "url", "http://"+listen+"/")
	return &display{
		observer: srv,
		clicks:   srv.Clicks(),
		locate:   srv.Locate,
		reject:   srv.Reject,
		start:    srv.Started(),
		run: func(ctx context.Context, m *match.Match) (match.Result, error) {
			res, err := m.Run(ctx)
			if err == nil {
				logger.Info("match over, still serving the final board; interrupt to exit")
				<-ctx.Done()
			}
			return res, err
		},
		close: func() {
			srv.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(ctx)
		},
	}
}
