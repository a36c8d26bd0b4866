package pkg

import (
	"time"

	"github.com/notnil/chess"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

// Match is the game record the owner goroutine mutates: where the game
// started, the moves played since, and every position along the way.
type Match struct {
	StartFEN  string
	Moves     []string
	Positions []*chess.Position
}

func NewMatch(startFEN string) (*Match, error) {
	pos, err := StartingPosition(startFEN)
	if err != nil {
		return nil, err
	}
	return &Match{
		StartFEN:  startFEN,
		Positions: []*chess.Position{pos},
	}, nil
}

func (m *Match) Position() *chess.Position {
	return m.Positions[len(m.Positions)-1]
}

func (m *Match) Turn() PlayerColor {
	return ColorOf(m.Position().Turn())
}

// Ply counts moves played since the start position.
func (m *Match) Ply() int {
	return len(m.Moves)
}

func (m *Match) Play(rules Rules, move string) error {
	next, err := rules.Apply(m.Position(), move)
	if err != nil {
		return err
	}
	m.Moves = append(m.Moves, move)
	m.Positions = append(m.Positions, next)
	return nil
}

// Status is how the game has ended so far, chess.NoMethod while it goes on.
func (m *Match) Status(rules Rules) chess.Method {
	return rules.Outcome(m.Positions)
}

// Request builds the search request for the current position.
func (m *Match) Request(moveTime time.Duration) uci.SearchRequest {
	return uci.NewSearchRequest(m.StartFEN, m.Moves, moveTime)
}

// SAN returns the moves in algebraic notation, for display.
func (m *Match) SAN() []string {
	out := make([]string, len(m.Moves))
	for i := range m.Moves {
		pos := m.Positions[i]
		for _, mv := range pos.ValidMoves() {
			if mv.String() == m.Moves[i] {
				out[i] = chess.AlgebraicNotation{}.Encode(pos, mv)
				break
			}
		}
		if out[i] == "" {
			out[i] = m.Moves[i]
		}
	}
	return out
}

// Outcome is the PGN result string for a game that ended by method.
func (m *Match) Outcome(method chess.Method) string {
	switch method {
	case chess.NoMethod:
		return "*"
	case chess.Checkmate:
		if m.Turn() == Black {
			return "1-0"
		}
		return "0-1"
	default:
		return "1/2-1/2"
	}
}
