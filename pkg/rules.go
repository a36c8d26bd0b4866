package pkg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

var ErrIllegalMove = errors.New("illegal move")

// Rules is everything the orchestrator needs to know about chess. It never
// decides legality itself.
type Rules interface {
	IsLegal(pos *chess.Position, move string) bool
	Apply(pos *chess.Position, move string) (*chess.Position, error)
	// Outcome reports how the game ended, or chess.NoMethod while it goes
	// on. history runs from the start position to the current one.
	Outcome(history []*chess.Position) chess.Method
}

// ChessRules implements Rules with github.com/notnil/chess. Moves are UCI
// tokens such as e2e4 or e7e8q.
type ChessRules struct{}

func (ChessRules) find(pos *chess.Position, move string) *chess.Move {
	for _, m := range pos.ValidMoves() {
		if m.String() == move {
			return m
		}
	}
	return nil
}

func (r ChessRules) IsLegal(pos *chess.Position, move string) bool {
	return r.find(pos, move) != nil
}

func (r ChessRules) Apply(pos *chess.Position, move string) (*chess.Position, error) {
	m := r.find(pos, move)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}
	return pos.Update(m), nil
}

// Outcome covers mate, stalemate and the draws that need no claim:
// insufficient material, the 75-move rule and fivefold repetition.
func (ChessRules) Outcome(history []*chess.Position) chess.Method {
	if len(history) == 0 {
		return chess.NoMethod
	}
	cur := history[len(history)-1]
	// a game set up from the position applies every rule that needs no history
	opt, err := chess.FEN(cur.String())
	if err != nil {
		return cur.Status()
	}
	if method := chess.NewGame(opt).Method(); method != chess.NoMethod {
		return method
	}
	key, seen := repetitionKey(cur), 0
	for _, pos := range history {
		if repetitionKey(pos) == key {
			seen++
		}
	}
	if seen >= 5 {
		return chess.FivefoldRepetition
	}
	return chess.NoMethod
}

// repetitionKey is the FEN without the move clocks: board, side to move,
// castling rights and en passant square.
func repetitionKey(pos *chess.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// StartingPosition returns the standard start or the position fen describes.
func StartingPosition(fen string) (*chess.Position, error) {
	if fen == "" {
		return chess.NewGame().Position(), nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(opt).Position(), nil
}
