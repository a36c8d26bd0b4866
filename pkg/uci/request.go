package uci

import (
	"fmt"
	"strings"
	"time"
)

// Position describes what the engine should search from. An empty FEN means
// the standard starting position.
type Position struct {
	FEN   string
	Moves []string
}

// Command encodes the position as a `position` line.
func (p Position) Command() string {
	var sb strings.Builder
	sb.WriteString("position ")
	if p.FEN == "" {
		sb.WriteString("startpos")
	} else {
		sb.WriteString("fen ")
		sb.WriteString(p.FEN)
	}
	if len(p.Moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(p.Moves, " "))
	}
	return sb.String()
}

// SearchRequest is one position plus a time budget. It maps to exactly one
// protocol exchange.
type SearchRequest struct {
	Position
	MoveTime time.Duration
}

// NewSearchRequest copies moves so later changes to the caller's history do
// not leak into a request that is already in flight.
func NewSearchRequest(fen string, moves []string, moveTime time.Duration) SearchRequest {
	cp := make([]string, len(moves))
	copy(cp, moves)
	return SearchRequest{
		Position: Position{FEN: fen, Moves: cp},
		MoveTime: moveTime,
	}
}

// Millis is the time budget as sent on the wire.
func (r SearchRequest) Millis() int64 {
	ms := r.MoveTime.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}

func (r SearchRequest) String() string {
	return fmt.Sprintf("%s (movetime %d)", r.Command(), r.Millis())
}
