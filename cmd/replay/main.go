// Command replay reads archived matches, replays every move against the rules
// and reports any disagreement with what was recorded.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brensch/twinsnake/config"
	"github.com/brensch/twinsnake/logging"
	"github.com/brensch/twinsnake/store"
)

type summary struct {
	GameID   string    `json:"game_id"`
	Size     int       `json:"size"`
	Mode     string    `json:"mode"`
	Turns    int       `json:"turns"`
	Winner   int       `json:"winner"`
	Reason   string    `json:"reason"`
	Players  [2]string `json:"players"`
	Problems []string  `json:"problems,omitempty"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	in := flag.String("in", config.EnvOr("OUT_DIR", "data"), "Archive file or directory of archive files")
	only := flag.String("game", "", "Only show this match ID")
	show := flag.Bool("show", false, "Print each final board")
	asJSON := flag.Bool("json", false, "Print one JSON object per match")
	logFormat := flag.String("log-format", config.EnvOr("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.EnvOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("Bad logging flags: %v", err)
	}
	slog.SetDefault(logger)

	st, err := os.Stat(*in)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *in, err)
	}
	var rows []store.ArchiveTurnRow
	if st.IsDir() {
		rows, err = store.ReadArchiveDir(*in)
	} else {
		rows, err = store.ReadArchive(*in)
	}
	if err != nil {
		log.Fatalf("Failed to read archive: %v", err)
	}
	logger.Info("read archive", "path", *in, "rows", len(rows))

	games, err := store.Replay(rows)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	bad := 0
	for _, g := range games {
		if *only != "" && g.ID != *only {
			continue
		}
		if len(g.Problems) > 0 {
			bad++
		}
		if *asJSON {
			_ = enc.Encode(summary{
				GameID: g.ID, Size: g.Size, Mode: g.Mode.String(), Turns: g.Turns,
				Winner: int(g.Winner), Reason: g.Reason, Players: g.Players, Problems: g.Problems,
			})
			continue
		}
		if g.Winner.Valid() {
			fmt.Printf("%s %dx%d mode %s: %s beat %s (%s) in %d moves\n",
				g.ID, g.Size, g.Size, g.Mode, g.Players[g.Winner], g.Players[g.Winner.Other()], g.Reason, g.Turns)
		} else {
			fmt.Printf("%s %dx%d mode %s: no valid winner recorded (%s) after %d moves\n",
				g.ID, g.Size, g.Size, g.Mode, g.Reason, g.Turns)
		}
		for _, p := range g.Problems {
			fmt.Printf("  problem: %s\n", p)
		}
		if *show {
			fmt.Print(g.Board.String())
		}
	}
	logger.Info("replay finished", "games", len(games), "with_problems", bad)
	if bad > 0 {
		os.Exit(1)
	}
}
