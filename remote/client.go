package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/twinsnake/game"
)

// ClientConfig holds the timeouts for a spectator or remote player connection.
type ClientConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    2 * time.Minute,
	}
}

// Client is a browser stand-in: it receives board updates and can press start
// or click on the board.
type Client struct {
	cfg  ClientConfig
	conn *websocket.Conn
}

// Dial connects to a served match. addr may be an http(s) or ws(s) base URL
// or a bare host:port.
func Dial(ctx context.Context, addr string, cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout <= 0 || cfg.ReadTimeout <= 0 {
		def := DefaultClientConfig()
		if cfg.ConnectTimeout <= 0 {
			cfg.ConnectTimeout = def.ConnectTimeout
		}
		if cfg.ReadTimeout <= 0 {
			cfg.ReadTimeout = def.ReadTimeout
		}
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Client{cfg: cfg, conn: conn}, nil
}

func wsURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "http://"):
		addr = "ws://" + strings.TrimPrefix(addr, "http://")
	case strings.HasPrefix(addr, "https://"):
		addr = "wss://" + strings.TrimPrefix(addr, "https://")
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
	default:
		addr = "ws://" + addr
	}
	addr = strings.TrimSuffix(addr, "/")
	if !strings.HasSuffix(addr, "/ws") {
		addr += "/ws"
	}
	return addr
}

func (c *Client) Close() error { return c.conn.Close() }

// Next blocks for the next message from the server.
func (c *Client) Next() (Envelope, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Envelope{}, fmt.Errorf("read error: %w", err)
	}
	return DecodeEnvelope(data)
}

func (c *Client) Start() error { return c.send(MsgStart, nil) }

// Click sends a pixel point on the rendered board.
func (c *Client) Click(p game.Point) error { return c.send(MsgClick, Click(p)) }

func (c *Client) send(t string, payload any) error {
	msg, err := Encode(t, payload)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Watch reads until the match is over, calling onBoard for every board
// update, and returns the result. A connection closed before the result
// arrives is an error.
func (c *Client) Watch(onBoard func(BoardPayload)) (OverPayload, error) {
	for {
		env, err := c.Next()
		if err != nil {
			return OverPayload{}, err
		}
		switch env.T {
		case MsgBoard:
			bp, err := DecodePayload[BoardPayload](env)
			if err != nil {
				return OverPayload{}, err
			}
			if onBoard != nil {
				onBoard(bp)
			}
		case MsgOver:
			return DecodePayload[OverPayload](env)
		}
	}
}
