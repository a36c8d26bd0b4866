package pkg

import (
	"github.com/notnil/chess"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

// Transcript is a View that turns orchestrator callbacks into messages.
// Like every View it runs on the owner goroutine.
type Transcript struct {
	Sink    func(MessageInterface)
	Players [2]string
	Clock   *Clock

	last [2]uci.SearchResult
}

func NewTranscript(players [2]string, sink func(MessageInterface)) *Transcript {
	return &Transcript{Sink: sink, Players: players, Clock: NewClock()}
}

func (t *Transcript) GameStarted(m *Match, s TurnState) {
	t.last = [2]uci.SearchResult{}
	t.Clock.Reset()
	fen := m.StartFEN
	if fen == "" {
		fen = m.Positions[0].String()
	}
	t.Sink(MessageGame{
		Mode:  s.Mode.String(),
		FEN:   fen,
		White: t.player(White, s),
		Black: t.player(Black, s),
	})
}

func (t *Transcript) player(side PlayerColor, s TurnState) string {
	if !s.Controlled[side] {
		return "Human"
	}
	if t.Players[side] == "" {
		return "Engine"
	}
	return t.Players[side]
}

func (t *Transcript) MoveApplied(m *Match, move string) {
	side := m.Turn().Other()
	san := m.SAN()
	msg := MessageMove{
		Ply:  m.Ply(),
		Side: side.String(),
		Move: move,
		SAN:  san[len(san)-1],
	}
	if res := t.last[side]; res.BestMove == move {
		msg.Eval = res.Eval()
		msg.Depth = res.Depth
		msg.PV = res.PV
	}
	t.last[side] = uci.SearchResult{}
	t.Sink(msg)
}

func (t *Transcript) SearchStarted(side PlayerColor) {
	t.Clock.Start(side)
	t.Sink(MessageSearch{Side: side.String(), Thinking: true})
}

func (t *Transcript) SearchFinished(side PlayerColor, res uci.SearchResult) {
	t.Clock.Stop()
	t.last[side] = res
	t.Sink(MessageSearch{Side: side.String()})
}

func (t *Transcript) EngineUnavailable(err error) {
	t.Clock.Stop()
	t.Sink(MessageEngine{Error: err.Error()})
}

func (t *Transcript) GameOver(m *Match, method chess.Method) {
	t.Sink(MessageGameOver{
		Outcome: m.Outcome(method),
		Method:  method.String(),
		Moves:   append([]string(nil), m.Moves...),
		Thinking: [2]string{
			t.Clock.Format(White),
			t.Clock.Format(Black),
		},
	})
}
