package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type board string

func (b board) String() string { return string(b) }

func TestPrettyJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log.With("match", "m1").WithGroup("turn").Debug("move applied",
		"number", 3,
		"board", board("..O\n.X.\n"),
		"err", errors.New("boom"),
		slog.Group("mobility", "p0", 4, "p1", 2))
	t.Logf("output:\n%s", buf.String())

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["msg"] != "move applied" || got["level"] != "DEBUG" || got["match"] != "m1" {
		t.Fatalf("top level=%v", got)
	}
	turn, ok := got["turn"].(map[string]any)
	if !ok {
		t.Fatalf("turn group missing: %v", got)
	}
	if turn["number"] != float64(3) || turn["err"] != "boom" {
		t.Fatalf("turn=%v", turn)
	}
	lines, ok := turn["board"].([]any)
	if !ok || len(lines) != 2 || lines[0] != "..O" {
		t.Fatalf("board=%v", turn["board"])
	}
	if mob, ok := turn["mobility"].(map[string]any); !ok || mob["p1"] != float64(2) {
		t.Fatalf("mobility=%v", turn["mobility"])
	}
}

func TestPrettyJSONHandler_WithAttrsInsideGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, nil)).WithGroup("g").With("a", 1)
	log.Info("hi", "b", 2)
	log.Debug("dropped")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	g, _ := got["g"].(map[string]any)
	if g["a"] != float64(1) || g["b"] != float64(2) {
		t.Fatalf("got=%v", got)
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty", ""} {
		var buf bytes.Buffer
		log, err := New(&buf, format, "warn")
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		log.Info("hidden")
		log.Warn("shown")
		if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
			t.Fatalf("format %q wrote %q", format, buf.String())
		}
	}
	if _, err := New(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Fatalf("unknown format accepted")
	}
	if _, err := New(&bytes.Buffer{}, "text", "loud"); err == nil {
		t.Fatalf("unknown level accepted")
	}
}
