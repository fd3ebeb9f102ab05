package remote

import (
	"encoding/json"
	"fmt"

	"github.com/brensch/twinsnake/game"
	"github.com/brensch/twinsnake/match"
)

// Message types. board, over and reject go to the browser; click and start
// come from it.
const (
	MsgBoard  = "board"
	MsgOver   = "over"
	MsgReject = "reject"
	MsgClick  = "click"
	MsgStart  = "start"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

type MovePayload struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Heading string `json:"heading"`
}

type BoardPayload struct {
	Turn   int          `json:"turn"`
	ToMove int          `json:"toMove"`
	Size   int          `json:"size"`
	Mode   string       `json:"mode"`
	Rows   []string     `json:"rows"`
	Last   *MovePayload `json:"last,omitempty"`
}

type OverPayload struct {
	Winner int    `json:"winner"`
	Loser  int    `json:"loser"`
	Reason string `json:"reason"`
	Turns  int    `json:"turns"`
}

type RejectPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Click is what the browser sends: a pixel offset inside the board.
type Click = game.Point

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty envelope type")
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{T: t, P: raw})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode: empty message")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := json.Unmarshal(env.P, &out)
	return out, err
}

func boardPayload(t match.Turn, b *game.Board) BoardPayload {
	p := BoardPayload{
		Turn:   t.Number,
		ToMove: int(t.Player.Other()),
		Size:   b.Size,
		Mode:   b.Mode.String(),
		Rows:   splitRows(b),
	}
	if t.Number > 0 {
		p.Last = &MovePayload{Row: t.Move.Target.Row, Col: t.Move.Target.Col, Heading: t.Move.Heading.String()}
	}
	return p
}
