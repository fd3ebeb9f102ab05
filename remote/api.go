package remote

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/brensch/twinsnake/store"
)

// GameSummary is one archived match as listed by /api/games.
type GameSummary struct {
	GameID   string    `json:"game_id"`
	Size     int       `json:"size"`
	Mode     string    `json:"mode"`
	Turns    int       `json:"turns"`
	Winner   int       `json:"winner"`
	Reason   string    `json:"reason"`
	Players  [2]string `json:"players"`
	Problems []string  `json:"problems,omitempty"`
}

type GamesResponse struct {
	Total int           `json:"total"`
	Games []GameSummary `json:"games"`
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// handleGames replays every archived match under ArchiveDir and lists them in
// archive order. limit and offset page through the list.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ArchiveDir == "" {
		writeJSON(w, GamesResponse{Games: []GameSummary{}})
		return
	}

	rows, err := store.ReadArchiveDir(s.ArchiveDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	games, err := store.Replay(rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := parseIntQuery(r, "limit", 100)
	offset := parseIntQuery(r, "offset", 0)
	resp := GamesResponse{Total: len(games), Games: []GameSummary{}}
	for i := offset; i < len(games) && i < offset+limit; i++ {
		g := games[i]
		resp.Games = append(resp.Games, GameSummary{
			GameID:   g.ID,
			Size:     g.Size,
			Mode:     g.Mode.String(),
			Turns:    g.Turns,
			Winner:   int(g.Winner),
			Reason:   g.Reason,
			Players:  g.Players,
			Problems: g.Problems,
		})
	}
	writeJSON(w, resp)
}
