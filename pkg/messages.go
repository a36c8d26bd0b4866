package pkg

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

type MessageType int

const (
	TypeMessageGame MessageType = iota
	TypeMessageMove
	TypeMessageSearch
	TypeMessageEngine
	TypeMessageGameOver
)

func (m MessageType) String() string {
	switch m {
	case TypeMessageGame:
		return "TypeMessageGame"
	case TypeMessageMove:
		return "TypeMessageMove"
	case TypeMessageSearch:
		return "TypeMessageSearch"
	case TypeMessageEngine:
		return "TypeMessageEngine"
	case TypeMessageGameOver:
		return "TypeMessageGameOver"
	default:
		return "Unknown MessageType"
	}
}

// MessageInterface is one event of a game as the transcript reports it.
type MessageInterface interface {
	Type() MessageType
	Encode() json.RawMessage
}

// Message types

// MessageTransport is the envelope written when messages are streamed as
// JSON lines.
type MessageTransport struct {
	MsgType MessageType
	Data    json.RawMessage
}

func Wrap(m MessageInterface) MessageTransport {
	return MessageTransport{MsgType: m.Type(), Data: m.Encode()}
}

func (m MessageTransport) Encode() json.RawMessage {
	return encode(m)
}

type MessageGame struct {
	Mode  string
	FEN   string
	White string
	Black string
}

func (m MessageGame) Type() MessageType       { return TypeMessageGame }
func (m MessageGame) Encode() json.RawMessage { return encode(m) }

type MessageMove struct {
	Ply   int
	Side  string
	Move  string
	SAN   string
	Eval  string   `json:",omitempty"`
	Depth int      `json:",omitempty"`
	PV    []string `json:",omitempty"`
}

func (m MessageMove) Type() MessageType       { return TypeMessageMove }
func (m MessageMove) Encode() json.RawMessage { return encode(m) }

type MessageSearch struct {
	Side     string
	Thinking bool
}

func (m MessageSearch) Type() MessageType       { return TypeMessageSearch }
func (m MessageSearch) Encode() json.RawMessage { return encode(m) }

type MessageEngine struct {
	Error string
}

func (m MessageEngine) Type() MessageType       { return TypeMessageEngine }
func (m MessageEngine) Encode() json.RawMessage { return encode(m) }

type MessageGameOver struct {
	Outcome string
	Method  string
	Moves   []string
	// Thinking is the time each engine spent searching, White first.
	Thinking [2]string
}

func (m MessageGameOver) Type() MessageType       { return TypeMessageGameOver }
func (m MessageGameOver) Encode() json.RawMessage { return encode(m) }

// Text renders a message for people to read.
func Text(m MessageInterface) string {
	switch m := m.(type) {
	case MessageGame:
		return fmt.Sprintf("New game (%s): %s vs %s", m.Mode, m.White, m.Black)
	case MessageMove:
		no := fmt.Sprintf("%d.", (m.Ply+1)/2)
		if m.Side == Black.String() {
			no += ".."
		}
		s := fmt.Sprintf("%s %s", no, m.SAN)
		if m.Eval != "" {
			s += fmt.Sprintf(" (%s d%d)", m.Eval, m.Depth)
		}
		if len(m.PV) > 1 {
			s += " " + strings.Join(m.PV[1:], " ")
		}
		return s
	case MessageSearch:
		if m.Thinking {
			return m.Side + " is thinking..."
		}
		return m.Side + " finished thinking"
	case MessageEngine:
		return "Engine unavailable: " + m.Error
	case MessageGameOver:
		return fmt.Sprintf("Game over: %s (%s) thinking White %s Black %s",
			m.Outcome, m.Method, m.Thinking[0], m.Thinking[1])
	default:
		return m.Type().String()
	}
}

func encode(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Panic(err)
	}
	return data
}
