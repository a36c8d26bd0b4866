package pkg_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnkhuat/chessbridge/internal/enginetest"
	"github.com/qnkhuat/chessbridge/pkg"
	"github.com/qnkhuat/chessbridge/pkg/engine"
	"github.com/qnkhuat/chessbridge/pkg/uci"
)

const waitFor = 3 * time.Second

type reply struct {
	res uci.SearchResult
	err error
}

// scriptedSearcher answers a search only when the test says so.
type scriptedSearcher struct {
	requests   chan uci.SearchRequest
	replies    chan reply
	returned   chan struct{}
	once       sync.Once
	terminated chan struct{}
}

func newScripted() *scriptedSearcher {
	return &scriptedSearcher{
		requests:   make(chan uci.SearchRequest, 8),
		replies:    make(chan reply),
		returned:   make(chan struct{}, 8),
		terminated: make(chan struct{}),
	}
}

func (s *scriptedSearcher) Request(ctx context.Context, req uci.SearchRequest) (uci.SearchResult, error) {
	s.requests <- req
	r := <-s.replies
	s.returned <- struct{}{}
	return r.res, r.err
}

func (s *scriptedSearcher) Terminate() <-chan struct{} {
	s.once.Do(func() { close(s.terminated) })
	return s.terminated
}

func (s *scriptedSearcher) isTerminated() bool {
	select {
	case <-s.terminated:
		return true
	default:
		return false
	}
}

func (s *scriptedSearcher) answer(t *testing.T, move string) {
	t.Helper()
	select {
	case s.replies <- reply{res: uci.SearchResult{BestMove: move}}:
	case <-time.After(waitFor):
		t.Fatalf("nobody waiting for %s", move)
	}
}

func (s *scriptedSearcher) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case s.replies <- reply{err: err}:
	case <-time.After(waitFor):
		t.Fatal("nobody waiting for failure")
	}
}

func (s *scriptedSearcher) expectRequest(t *testing.T) uci.SearchRequest {
	t.Helper()
	select {
	case req := <-s.requests:
		return req
	case <-time.After(waitFor):
		t.Fatal("expected a search request")
	}
	return uci.SearchRequest{}
}

func (s *scriptedSearcher) expectNoRequest(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case req := <-s.requests:
		t.Fatalf("unexpected search request %s", req)
	case <-time.After(d):
	}
}

type recorder struct {
	mu      sync.Mutex
	events  []string
	lastErr error
	method  chess.Method
	ch      chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 1024)}
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recorder) GameStarted(*pkg.Match, pkg.TurnState) { r.add("started") }
func (r *recorder) MoveApplied(_ *pkg.Match, move string) { r.add("moved " + move) }
func (r *recorder) SearchStarted(side pkg.PlayerColor)    { r.add("search " + side.String()) }
func (r *recorder) SearchFinished(side pkg.PlayerColor, _ uci.SearchResult) {
	r.add("finished " + side.String())
}

func (r *recorder) EngineUnavailable(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.add("unavailable")
}

func (r *recorder) GameOver(_ *pkg.Match, method chess.Method) {
	r.mu.Lock()
	r.method = method
	r.mu.Unlock()
	r.add("over")
}

func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-r.ch:
			if ev == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q, saw %v", want, r.all())
		}
	}
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, ev := range r.all() {
		if strings.HasPrefix(ev, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

type harness struct {
	loop *pkg.Loop
	orch *pkg.Orchestrator
	view *recorder
	fake [2]*scriptedSearcher
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop: pkg.NewLoop(),
		view: newRecorder(),
		fake: [2]*scriptedSearcher{newScripted(), newScripted()},
	}
	ctx, cancel := context.WithCancel(context.Background())
	go h.loop.Run(ctx)
	t.Cleanup(func() {
		if h.orch != nil {
			h.do(func() { h.orch.Stop() })
		}
		cancel()
	})
	return h
}

// newHarness opens scripted searchers unless cfg.Start says otherwise.
func newHarness(t *testing.T, cfg pkg.Config) *harness {
	t.Helper()
	h := startHarness(t)
	if cfg.Start == nil {
		cfg.Start = func(ctx context.Context, side pkg.PlayerColor, p pkg.Player) (pkg.Searcher, error) {
			return h.fake[side], nil
		}
	}
	h.orch = pkg.NewOrchestrator(cfg, h.loop, pkg.ChessRules{}, h.view, zerolog.Nop())
	return h
}

// newEngineHarness runs real sessions against the configured launchers.
func newEngineHarness(t *testing.T, cfg pkg.Config) *harness {
	t.Helper()
	h := startHarness(t)
	h.orch = pkg.NewOrchestrator(cfg, h.loop, pkg.ChessRules{}, h.view, zerolog.Nop())
	return h
}

func (h *harness) do(f func()) {
	h.loop.Call(f)
}

func (h *harness) state() pkg.TurnState {
	var s pkg.TurnState
	h.do(func() { s = h.orch.State() })
	return s
}

func (h *harness) moves() []string {
	var moves []string
	h.do(func() { moves = append(moves, h.orch.Match().Moves...) })
	return moves
}

func (h *harness) newGame(t *testing.T, setup pkg.Setup) {
	t.Helper()
	var err error
	h.do(func() { err = h.orch.NewGame(setup) })
	require.NoError(t, err)
	h.view.wait(t, "started")
}

func (h *harness) submit(move string) error {
	var err error
	h.do(func() { err = h.orch.SubmitMove(move) })
	return err
}

func TestHumanVsEngineEndToEnd(t *testing.T) {
	eng := enginetest.New(enginetest.BestMove("e7e5"))
	h := newEngineHarness(t, pkg.Config{
		Players: [2]pkg.Player{
			pkg.Black: {Launcher: eng, MoveTime: 20 * time.Millisecond},
		},
		Engine: engine.Config{QuitTimeout: 100 * time.Millisecond},
	})

	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.Black})
	assert.False(t, h.state().Thinking)
	assert.Equal(t, 0, h.view.count("search"))

	require.NoError(t, h.submit("e2e4"))
	h.view.wait(t, "moved e7e5")

	assert.Equal(t, []string{"e2e4", "e7e5"}, h.moves())
	assert.Equal(t, 1, h.view.count("search Black"))
	assert.True(t, eng.Saw("position startpos moves e2e4"))
	gos := 0
	for _, line := range eng.Received() {
		if strings.HasPrefix(line, "go ") {
			gos++
		}
	}
	assert.Equal(t, 1, gos)

	var gone <-chan struct{}
	h.do(func() { gone = h.orch.Stop() })
	select {
	case <-gone:
	case <-time.After(waitFor):
		t.Fatal("engine did not terminate")
	}
	assert.True(t, eng.Saw("quit"))
}

func TestEngineMovesFirstAsWhite(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})

	req := h.fake[pkg.White].expectRequest(t)
	assert.Equal(t, "position startpos", req.Command())
	assert.True(t, h.state().Thinking)

	assert.ErrorIs(t, h.submit("e7e5"), pkg.ErrNotYourTurn)

	h.fake[pkg.White].answer(t, "d2d4")
	h.view.wait(t, "moved d2d4")
	assert.False(t, h.state().Thinking)

	assert.ErrorIs(t, h.submit("d7d3"), pkg.ErrIllegalMove)
	require.NoError(t, h.submit("d7d5"))

	req = h.fake[pkg.White].expectRequest(t)
	assert.Equal(t, "position startpos moves d2d4 d7d5", req.Command())
}

func TestSubmitMoveWithoutGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	assert.ErrorIs(t, h.submit("e2e4"), pkg.ErrNoGame)
}

func TestEngineVsEngineSearchesOneAtATime(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine})
	white, black := h.fake[pkg.White], h.fake[pkg.Black]

	for _, mv := range []struct {
		side *scriptedSearcher
		idle *scriptedSearcher
		move string
	}{
		{white, black, "e2e4"},
		{black, white, "e7e5"},
		{white, black, "g1f3"},
	} {
		mv.side.expectRequest(t)
		mv.idle.expectNoRequest(t, 30*time.Millisecond)
		mv.side.answer(t, mv.move)
		h.view.wait(t, "moved "+mv.move)
	}
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3"}, h.moves())
	assert.ErrorIs(t, h.submit("b8c6"), pkg.ErrNotYourTurn)
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	white := h.fake[pkg.White]
	white.expectRequest(t)

	h.do(func() { h.orch.Stop() })
	assert.True(t, white.isTerminated())
	assert.False(t, h.state().Thinking)

	white.answer(t, "e2e4")
	<-white.returned
	assert.Never(t, func() bool { return h.view.count("moved") > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, h.moves())
	assert.Equal(t, 0, h.view.count("finished"))
}

func TestNewGameDiscardsResultOfPreviousGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	first := h.fake[pkg.White]
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	first.expectRequest(t)

	second := newScripted()
	h.fake[pkg.White] = second
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	second.expectRequest(t)

	first.answer(t, "e2e4")
	<-first.returned
	second.answer(t, "d2d4")
	h.view.wait(t, "moved d2d4")

	assert.Equal(t, []string{"d2d4"}, h.moves())
	assert.Equal(t, 0, h.view.count("moved e2e4"))
}

func TestPauseAppliesInFlightMove(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine})
	white, black := h.fake[pkg.White], h.fake[pkg.Black]

	white.expectRequest(t)
	var err error
	h.do(func() { err = h.orch.Pause() })
	require.NoError(t, err)
	assert.True(t, h.state().Paused)

	white.answer(t, "e2e4")
	h.view.wait(t, "moved e2e4")
	black.expectNoRequest(t, 50*time.Millisecond)
	assert.False(t, h.state().Thinking)

	h.do(func() { err = h.orch.Resume() })
	require.NoError(t, err)
	req := black.expectRequest(t)
	assert.Equal(t, "position startpos moves e2e4", req.Command())
}

func TestPauseOnlyInEngineMatch(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	var err error
	h.do(func() { err = h.orch.Pause() })
	assert.ErrorIs(t, err, pkg.ErrNoGame)

	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.Black})
	h.do(func() { err = h.orch.TogglePause() })
	assert.ErrorIs(t, err, pkg.ErrNotEngineMatch)
}

func TestEngineVsEngineDelay(t *testing.T) {
	const delay = 80 * time.Millisecond
	h := newHarness(t, pkg.Config{Delay: delay})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine})

	h.fake[pkg.White].expectRequest(t)
	h.fake[pkg.White].answer(t, "e2e4")
	h.view.wait(t, "moved e2e4")
	moved := time.Now()

	// the owner stays responsive during the delay
	assert.Equal(t, []string{"e2e4"}, h.moves())

	h.fake[pkg.Black].expectRequest(t)
	assert.GreaterOrEqual(t, time.Since(moved), delay-10*time.Millisecond)
}

func TestIllegalEngineMoveHaltsGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	white := h.fake[pkg.White]
	white.expectRequest(t)

	white.answer(t, "e2e5")
	h.view.wait(t, "unavailable")

	assert.ErrorIs(t, h.view.err(), uci.ErrUnavailable)
	assert.False(t, h.state().Active)
	assert.True(t, white.isTerminated())
	assert.Empty(t, h.moves())
	white.expectNoRequest(t, 30*time.Millisecond)
}

func TestNullEngineMoveHaltsGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine})
	h.fake[pkg.White].expectRequest(t)

	h.fake[pkg.White].answer(t, "0000")
	h.view.wait(t, "unavailable")
	assert.True(t, h.fake[pkg.Black].isTerminated())
}

func TestEngineFailureHaltsOnlyThatGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	white := h.fake[pkg.White]
	white.expectRequest(t)

	white.fail(t, uci.ErrUnavailable)
	h.view.wait(t, "unavailable")
	assert.False(t, h.state().Active)
	white.expectNoRequest(t, 30*time.Millisecond)

	// a new game starts fresh
	h.fake[pkg.White] = newScripted()
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	h.fake[pkg.White].expectRequest(t)
}

func TestStartupFailurePreventsGame(t *testing.T) {
	h := newHarness(t, pkg.Config{
		Start: func(context.Context, pkg.PlayerColor, pkg.Player) (pkg.Searcher, error) {
			return nil, uci.ErrStartup
		},
	})
	var err error
	h.do(func() { err = h.orch.NewGame(pkg.Setup{Mode: pkg.EngineVsEngine}) })
	require.NoError(t, err)
	h.view.wait(t, "unavailable")

	assert.True(t, errors.Is(h.view.err(), uci.ErrStartup))
	assert.False(t, h.state().Active)
	assert.ErrorIs(t, h.submit("e2e4"), pkg.ErrNoGame)
}

func TestStartupFailureWithRealEngine(t *testing.T) {
	eng := enginetest.New(nil)
	eng.Silent = true
	h := newEngineHarness(t, pkg.Config{
		Players: [2]pkg.Player{pkg.Black: {Launcher: eng, MoveTime: time.Millisecond}},
		Engine:  engine.Config{StartupTimeout: 50 * time.Millisecond},
	})

	var err error
	h.do(func() { err = h.orch.NewGame(pkg.Setup{EngineSide: pkg.Black}) })
	require.NoError(t, err)
	h.view.wait(t, "unavailable")
	assert.ErrorIs(t, h.view.err(), uci.ErrStartup)
}

func TestGameOverStopsDispatch(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	// after 1. f3 e5 2. g4, black mates with Qh4
	fen := "rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq g3 0 2"
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine, StartFEN: fen})

	req := h.fake[pkg.Black].expectRequest(t)
	assert.Equal(t, "position fen "+fen, req.Command())
	h.fake[pkg.Black].answer(t, "d8h4")
	h.view.wait(t, "over")

	h.view.mu.Lock()
	assert.Equal(t, chess.Checkmate, h.view.method)
	h.view.mu.Unlock()
	h.fake[pkg.White].expectNoRequest(t, 30*time.Millisecond)
	assert.False(t, h.state().Active)
	assert.True(t, h.fake[pkg.White].isTerminated())
}

func TestContinueFromEditedPosition(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	fen := "4k3/8/8/8/8/8/4P3/4K3 b - - 0 1"
	var err error
	h.do(func() { err = h.orch.ContinueFrom(fen, pkg.HumanVsEngine) })
	require.NoError(t, err)
	h.view.wait(t, "started")

	// human plays the side to move
	h.fake[pkg.White].expectNoRequest(t, 30*time.Millisecond)
	require.NoError(t, h.submit("e8d7"))

	req := h.fake[pkg.White].expectRequest(t)
	assert.Equal(t, "position fen "+fen+" moves e8d7", req.Command())
}

func TestContinueFromRejectsBadFEN(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	var err error
	h.do(func() { err = h.orch.ContinueFrom("not a fen", pkg.HumanVsEngine) })
	assert.ErrorIs(t, err, pkg.ErrInvalidPosition)
}

func TestSetPlayerStopsGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.HumanVsEngine, EngineSide: pkg.White})
	h.fake[pkg.White].expectRequest(t)

	h.do(func() { h.orch.SetPlayer(pkg.White, pkg.Player{Name: "other"}) })
	assert.True(t, h.fake[pkg.White].isTerminated())
	assert.False(t, h.state().Active)
}

func TestCaptureToBareKingsEndsGame(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{
		Mode:       pkg.HumanVsEngine,
		EngineSide: pkg.Black,
		StartFEN:   "8/8/4k3/8/8/3K4/3p4/8 w - - 0 1",
	})

	require.NoError(t, h.submit("d3d2"))
	h.view.wait(t, "over")

	h.view.mu.Lock()
	assert.Equal(t, chess.InsufficientMaterial, h.view.method)
	h.view.mu.Unlock()
	h.fake[pkg.Black].expectNoRequest(t, 30*time.Millisecond)
	assert.False(t, h.state().Active)
	assert.True(t, h.fake[pkg.Black].isTerminated())
}

func TestEngineMatchFromDeadPositionNeverSearches(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine, StartFEN: "8/8/4k3/8/8/3K4/8/8 w - - 0 1"})
	h.view.wait(t, "over")

	h.fake[pkg.White].expectNoRequest(t, 30*time.Millisecond)
	assert.Zero(t, h.view.count("search"))
	assert.False(t, h.state().Active)
}

func TestRepetitionEndsEngineMatch(t *testing.T) {
	h := newHarness(t, pkg.Config{})
	h.newGame(t, pkg.Setup{Mode: pkg.EngineVsEngine})

	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for i := 0; i < 4*len(shuffle); i++ {
		side := pkg.White
		if i%2 == 1 {
			side = pkg.Black
		}
		h.fake[side].expectRequest(t)
		h.fake[side].answer(t, shuffle[i%len(shuffle)])
	}
	h.view.wait(t, "over")

	h.view.mu.Lock()
	assert.Equal(t, chess.FivefoldRepetition, h.view.method)
	h.view.mu.Unlock()
	assert.Len(t, h.moves(), 16)
	h.fake[pkg.White].expectNoRequest(t, 30*time.Millisecond)
}
