package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/qnkhuat/chessbridge/pkg/engine"
	"github.com/qnkhuat/chessbridge/pkg/uci"
)

var (
	ErrNoGame          = errors.New("no game in progress")
	ErrNotYourTurn     = errors.New("not the human's turn")
	ErrNotEngineMatch  = errors.New("only engine-vs-engine games can be paused")
	ErrInvalidPosition = errors.New("invalid start position")
)

// Searcher is the part of an engine session the orchestrator drives.
type Searcher interface {
	Request(ctx context.Context, req uci.SearchRequest) (uci.SearchResult, error)
	Terminate() <-chan struct{}
}

// StartFunc opens the session for one side. It blocks and is only ever
// called off the owner goroutine.
type StartFunc func(ctx context.Context, side PlayerColor, p Player) (Searcher, error)

type Config struct {
	Players [2]Player
	Engine  engine.Config
	// Delay paces engine-vs-engine games between moves.
	Delay time.Duration
	// Start overrides how sessions are opened. Nil uses engine.Start.
	Start StartFunc
}

type Setup struct {
	Mode Mode
	// EngineSide is the side the engine plays in HumanVsEngine.
	EngineSide PlayerColor
	// StartFEN is empty for the standard start position.
	StartFEN string
}

type TurnState struct {
	Mode       Mode
	Controlled [2]bool
	Thinking   bool
	Paused     bool
	Active     bool
}

// Orchestrator decides after every position change whether an engine has
// to move and hands engine moves to the game. It is not safe for
// concurrent use: every method, including the callbacks it schedules, runs
// on the owner goroutine behind the Bridge.
type Orchestrator struct {
	cfg    Config
	rules  Rules
	bridge *Bridge
	view   View
	log    zerolog.Logger

	match    *Match
	state    TurnState
	sessions [2]Searcher
	scopes   [2]*Scope
	game     *Scope
}

func NewOrchestrator(cfg Config, owner Owner, rules Rules, view View, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		rules:  rules,
		bridge: NewBridge(owner, logger),
		view:   view,
		log:    logger,
	}
	if o.cfg.Start == nil {
		o.cfg.Start = o.startEngine
	}
	return o
}

func (o *Orchestrator) startEngine(ctx context.Context, side PlayerColor, p Player) (Searcher, error) {
	if p.Launcher == nil {
		return nil, fmt.Errorf("%w: no engine configured for %s", uci.ErrStartup, side)
	}
	logger := o.log.With().Str("side", side.String()).Logger()
	s, err := engine.Start(ctx, o.cfg.Engine, p.Launcher, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (o *Orchestrator) State() TurnState {
	return o.state
}

func (o *Orchestrator) Match() *Match {
	return o.match
}

// NewGame stops whatever is running and starts the engines for setup. The
// engines start off the owner goroutine; View.GameStarted or
// View.EngineUnavailable reports the outcome.
func (o *Orchestrator) NewGame(setup Setup) error {
	m, err := NewMatch(setup.StartFEN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	o.Stop()

	o.match = m
	o.state = TurnState{Mode: setup.Mode}
	switch setup.Mode {
	case HumanVsEngine:
		o.state.Controlled[setup.EngineSide] = true
	case EngineVsEngine:
		o.state.Controlled = [2]bool{true, true}
	}

	game := NewScope("game")
	o.game = game
	controlled := o.state.Controlled
	players := o.cfg.Players
	start := o.cfg.Start

	o.log.Info().Str("mode", setup.Mode.String()).Str("fen", setup.StartFEN).Msg("starting game")
	_, err = Dispatch(o.bridge, NewScope("startup"), func() ([2]Searcher, error) {
		var ss [2]Searcher
		for _, side := range []PlayerColor{White, Black} {
			if !controlled[side] {
				continue
			}
			s, err := start(context.Background(), side, players[side])
			if err != nil {
				terminateAll(ss)
				return [2]Searcher{}, fmt.Errorf("%s engine: %w", side, err)
			}
			ss[side] = s
		}
		return ss, nil
	}, func(ss [2]Searcher, err error) {
		if o.game != game || game.Closed() {
			// stopped or replaced while the engines were starting
			terminateAll(ss)
			return
		}
		if err != nil {
			o.log.Error().Err(err).Msg("engine startup failed")
			o.game.Close()
			o.view.EngineUnavailable(err)
			return
		}
		for _, side := range []PlayerColor{White, Black} {
			if ss[side] != nil {
				o.sessions[side] = ss[side]
				o.scopes[side] = NewScope(side.String())
			}
		}
		o.state.Active = true
		o.view.GameStarted(o.match, o.state)
		o.advance()
	})
	return err
}

// ContinueFrom starts a game from an edited position. In HumanVsEngine the
// human plays the side to move, as after leaving the board editor.
func (o *Orchestrator) ContinueFrom(fen string, mode Mode) error {
	pos, err := StartingPosition(fen)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	return o.NewGame(Setup{
		Mode:       mode,
		EngineSide: ColorOf(pos.Turn()).Other(),
		StartFEN:   fen,
	})
}

// SubmitMove plays a human move in HumanVsEngine.
func (o *Orchestrator) SubmitMove(move string) error {
	if o.match == nil || !o.state.Active {
		return ErrNoGame
	}
	side := o.match.Turn()
	if o.state.Controlled[side] || o.state.Thinking {
		return ErrNotYourTurn
	}
	if err := o.match.Play(o.rules, move); err != nil {
		return err
	}
	o.log.Info().Str("side", side.String()).Str("move", move).Msg("human move")
	o.view.MoveApplied(o.match, move)
	o.advance()
	return nil
}

// Pause stops new searches in an engine-vs-engine game. A search already
// running still gets its move played.
func (o *Orchestrator) Pause() error {
	if err := o.engineMatch(); err != nil {
		return err
	}
	o.state.Paused = true
	return nil
}

func (o *Orchestrator) Resume() error {
	if err := o.engineMatch(); err != nil {
		return err
	}
	o.state.Paused = false
	o.advance()
	return nil
}

func (o *Orchestrator) TogglePause() error {
	if o.state.Paused {
		return o.Resume()
	}
	return o.Pause()
}

func (o *Orchestrator) engineMatch() error {
	if o.match == nil || !o.state.Active {
		return ErrNoGame
	}
	if o.state.Mode != EngineVsEngine {
		return ErrNotEngineMatch
	}
	return nil
}

func (o *Orchestrator) Player(side PlayerColor) Player {
	return o.cfg.Players[side]
}

// SetPlayer replaces the engine for one side. A running game is stopped
// because its session belongs to the old executable.
func (o *Orchestrator) SetPlayer(side PlayerColor, p Player) <-chan struct{} {
	o.cfg.Players[side] = p
	return o.Stop()
}

// Stop ends the game: engines are asked to quit (and killed if they do not)
// and any search still running is dropped when it returns. The channel
// closes once every engine process is gone.
func (o *Orchestrator) Stop() <-chan struct{} {
	gone := o.teardown()
	o.state.Active = false
	return gone
}

func (o *Orchestrator) teardown() <-chan struct{} {
	if o.game != nil {
		o.game.Close()
	}
	o.bridge.Stop()
	var ss [2]Searcher
	for i := range o.sessions {
		if o.scopes[i] != nil {
			o.scopes[i].Close()
			o.scopes[i] = nil
		}
		ss[i] = o.sessions[i]
		o.sessions[i] = nil
	}
	o.state.Thinking = false
	o.state.Paused = false
	return terminateAll(ss)
}

// advance is the decision rule, run after every position change.
func (o *Orchestrator) advance() {
	if o.match == nil || !o.state.Active {
		return
	}
	if method := o.match.Status(o.rules); method != chess.NoMethod {
		o.finish(method)
		return
	}
	side := o.match.Turn()
	if !o.state.Controlled[side] || o.state.Thinking || o.state.Paused {
		return
	}
	o.dispatch(side)
}

func (o *Orchestrator) dispatch(side PlayerColor) {
	s, scope := o.sessions[side], o.scopes[side]
	if s == nil {
		o.halt(fmt.Errorf("%w: no session for %s", uci.ErrUnavailable, side))
		return
	}
	req := o.match.Request(o.cfg.Players[side].MoveTime)
	ply := o.match.Ply()

	o.state.Thinking = true
	id, err := Dispatch(o.bridge, scope, func() (uci.SearchResult, error) {
		return s.Request(context.Background(), req)
	}, func(res uci.SearchResult, err error) {
		o.onResult(side, ply, res, err)
	})
	if err != nil {
		o.state.Thinking = false
		o.log.Error().Err(err).Str("side", side.String()).Msg("dispatch refused")
		return
	}
	o.log.Debug().Str("side", side.String()).Str("search", id).Int("ply", ply).Msg("search dispatched")
	o.view.SearchStarted(side)
}

func (o *Orchestrator) onResult(side PlayerColor, ply int, res uci.SearchResult, err error) {
	o.state.Thinking = false
	o.view.SearchFinished(side, res)
	log := o.log.With().Str("side", side.String()).Int("ply", ply).Logger()

	if !o.state.Active || o.match.Ply() != ply || o.match.Turn() != side {
		log.Info().Msg("position changed during search, discarding result")
		o.advance()
		return
	}
	if o.match.Status(o.rules) != chess.NoMethod {
		log.Info().Msg("game over during search, discarding result")
		o.advance()
		return
	}
	if err != nil {
		o.halt(err)
		return
	}
	if res.NullMove() {
		o.halt(fmt.Errorf("%w: engine returned no move", uci.ErrUnavailable))
		return
	}
	if err := o.match.Play(o.rules, res.BestMove); err != nil {
		o.halt(fmt.Errorf("%w: %w", uci.ErrUnavailable, err))
		return
	}
	log.Info().Str("move", res.BestMove).Str("eval", res.Eval()).Msg("engine move")
	o.view.MoveApplied(o.match, res.BestMove)

	if o.state.Mode == EngineVsEngine && o.cfg.Delay > 0 {
		o.bridge.After(o.game, o.cfg.Delay, o.advance)
		return
	}
	o.advance()
}

// halt stops the game after an engine failure. Engines are not retried.
func (o *Orchestrator) halt(err error) {
	o.log.Error().Err(err).Msg("engine unavailable, halting game")
	o.Stop()
	o.view.EngineUnavailable(err)
}

func (o *Orchestrator) finish(method chess.Method) {
	o.log.Info().Str("method", method.String()).Int("ply", o.match.Ply()).Msg("game over")
	o.Stop()
	o.view.GameOver(o.match, method)
}

func terminateAll(ss [2]Searcher) <-chan struct{} {
	gone := make(chan struct{})
	var waits []<-chan struct{}
	for _, s := range ss {
		if s != nil {
			waits = append(waits, s.Terminate())
		}
	}
	go func() {
		defer close(gone)
		for _, w := range waits {
			<-w
		}
	}()
	return gone
}
