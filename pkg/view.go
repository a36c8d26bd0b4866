package pkg

import (
	"github.com/notnil/chess"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

// View is the presentation side of the orchestrator. Every method is called
// on the owner goroutine.
type View interface {
	GameStarted(m *Match, s TurnState)
	MoveApplied(m *Match, move string)
	SearchStarted(side PlayerColor)
	SearchFinished(side PlayerColor, res uci.SearchResult)
	EngineUnavailable(err error)
	GameOver(m *Match, method chess.Method)
}

// NopView ignores everything. Embed it to implement only part of View.
type NopView struct{}

func (NopView) GameStarted(*Match, TurnState)                {}
func (NopView) MoveApplied(*Match, string)                   {}
func (NopView) SearchStarted(PlayerColor)                    {}
func (NopView) SearchFinished(PlayerColor, uci.SearchResult) {}
func (NopView) EngineUnavailable(error)                      {}
func (NopView) GameOver(*Match, chess.Method)                {}
