// Package remote serves a match to browsers. Every applied move is pushed over
// a websocket, and clicks on the rendered board come back as pixel points for
// a human player.
package remote

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
	"github.com/brensch/twinsnake/rules"
)

const (
	DefaultCellSize = 32

	readLimit    = 1 << 16
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server holds the latest board and the connected browsers.
type Server struct {
	CellSize int
	// ArchiveDir, if set, is listed by /api/games.
	ArchiveDir string

	log    *slog.Logger
	clicks chan game.Point
	start  chan struct{}
	once   sync.Once

	mu      sync.Mutex
	clients map[*client]struct{}
	board   *game.Board
	names   [2]string
	turn    match.Turn
	result  *match.Result
	status  string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer shows b until the first move is observed.
func NewServer(b *game.Board, names [2]string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		CellSize: DefaultCellSize,
		log:      log.With("component", "remote"),
		clicks:   make(chan game.Point, 1),
		start:    make(chan struct{}),
		clients:  make(map[*client]struct{}),
		board:    b.Clone(),
		names:    names,
		turn:     match.Turn{Player: game.Player1},
		status:   "waiting for start",
	}
}

// Clicks delivers board clicks in pixels.
func (s *Server) Clicks() <-chan game.Point { return s.clicks }

// Started is closed when any browser presses start.
func (s *Server) Started() <-chan struct{} { return s.start }

// Locate maps a pixel click to a cell using the served cell size.
func (s *Server) Locate(p game.Point) game.Coord {
	return game.CellForPoint(p, s.CellSize)
}

// RegisterRoutes sets up the page, the board fragment, the JSON API and the
// websocket on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/board", s.handleBoard)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) MoveApplied(t match.Turn, b *game.Board) {
	s.mu.Lock()
	s.board = b.Clone()
	s.turn = t
	s.status = "turn " + strconv.Itoa(t.Number) + ": " + s.names[t.Player] + " played " + t.Move.String()
	msg, err := Encode(MsgBoard, boardPayload(t, s.board))
	s.mu.Unlock()
	if err != nil {
		s.log.Error("encode board", "error", err)
		return
	}
	s.broadcast(msg)
}

func (s *Server) MatchOver(r match.Result, b *game.Board) {
	s.mu.Lock()
	s.board = b.Clone()
	s.result = &r
	s.status = s.names[r.Winner] + " wins (" + string(r.Reason) + ") after " + strconv.Itoa(r.Turns) + " moves"
	s.mu.Unlock()
	msg, err := Encode(MsgOver, OverPayload{Winner: int(r.Winner), Loser: int(r.Loser), Reason: string(r.Reason), Turns: r.Turns})
	if err != nil {
		s.log.Error("encode result", "error", err)
		return
	}
	s.broadcast(msg)
}

// Reject tells browsers that a click did not land on a legal target.
func (s *Server) Reject(c game.Coord) {
	msg, err := Encode(MsgReject, RejectPayload{Row: c.Row, Col: c.Col})
	if err != nil {
		return
	}
	s.broadcast(msg)
}

// Close drops every connected browser.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.log.Warn("dropping slow browser", "remote", c.conn.RemoteAddr().String())
			close(c.send)
			delete(s.clients, c)
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// Register and queue the current board under one lock so no move can
	// slip in between.
	s.mu.Lock()
	hello, err := Encode(MsgBoard, boardPayload(s.turn, s.board))
	if err == nil {
		c.send <- hello
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("browser connected", "remote", conn.RemoteAddr().String())

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read", "error", err)
			}
			return
		}
		env, err := DecodeEnvelope(data)
		if err != nil {
			s.log.Debug("bad message", "error", err)
			continue
		}
		switch env.T {
		case MsgStart:
			s.once.Do(func() { close(s.start) })
		case MsgClick:
			p, err := DecodePayload[Click](env)
			if err != nil {
				s.log.Debug("bad click", "error", err)
				continue
			}
			// A click nobody is waiting for is dropped.
			select {
			case s.clicks <- p:
			default:
			}
		default:
			s.log.Debug("unknown message", "type", env.T)
		}
	}
}

type cellView struct {
	Class string
	Glyph string
}

type pageView struct {
	Names    [2]string
	Size     int
	Mode     string
	Turn     int
	CellSize int
	Rows     [][]cellView
	Status   string
}

func (s *Server) view() pageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := map[game.Coord]bool{}
	if s.result == nil {
		for _, mv := range rules.MovesForPlayer(s.board, s.turn.Player.Other(), nil) {
			targets[mv.Target] = true
		}
	}
	v := pageView{
		Names:    s.names,
		Size:     s.board.Size,
		Mode:     s.board.Mode.String(),
		Turn:     s.turn.Number,
		CellSize: s.CellSize,
		Status:   s.status,
	}
	for r, line := range splitRows(s.board) {
		row := make([]cellView, len(line))
		for c := 0; c < len(line); c++ {
			row[c] = cellFor(line[c], targets[game.Coord{Row: r, Col: c}])
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func cellFor(ch byte, target bool) cellView {
	switch ch {
	case 'O':
		return cellView{Class: "p0 end", Glyph: "O"}
	case 'X':
		return cellView{Class: "p1 end", Glyph: "X"}
	case 'o':
		return cellView{Class: "p0"}
	case '*':
		return cellView{Class: "p1"}
	}
	if target {
		return cellView{Class: "empty target"}
	}
	return cellView{Class: "empty"}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	render(w, "page", s.view())
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	render(w, "board", s.view())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	s.mu.Lock()
	p := boardPayload(s.turn, s.board)
	s.mu.Unlock()
	writeJSON(w, p)
}

func render(w http.ResponseWriter, name string, v pageView) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func splitRows(b *game.Board) []string {
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
}
