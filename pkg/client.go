package pkg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/qnkhuat/chessbridge/pkg/config"
	"github.com/qnkhuat/chessbridge/pkg/gui"
	"github.com/qnkhuat/chessbridge/pkg/uci"
)

const (
	moveListRows = 16
	meterWidth   = 20
	fenLabel     = "FEN: "
	pauseKey     = 'p'
)

// AppOwner makes the tview event loop the owner goroutine.
type AppOwner struct {
	App *tview.Application
}

func (o AppOwner) Queue(f func()) {
	o.App.QueueUpdateDraw(f)
}

// Client is the terminal front end. Everything below runs on the tview
// event loop, either as an input handler or queued through AppOwner.
type Client struct {
	App      *tview.Application
	Board    *tview.Table
	Layout   *tview.Grid
	Menu     *tview.List
	Moves    *tview.TextView
	Status   *tview.TextView
	Messages *tview.TextView
	Editor   *tview.InputField

	orch       *Orchestrator
	transcript *Transcript
	theme      gui.Theme
	log        zerolog.Logger

	flip          bool
	editing       bool
	pickingEngine bool
	engineSide    PlayerColor
	selecting     bool
	lastSelection chess.Square
	highlights    map[chess.Square]bool
	eval          uci.SearchResult
	evalSide      PlayerColor
}

func NewClient(cfg Config, theme gui.Theme, logger zerolog.Logger) *Client {
	app := tview.NewApplication()

	cl := &Client{
		App:        app,
		Board:      tview.NewTable(),
		Menu:       tview.NewList().ShowSecondaryText(false),
		Moves:      tview.NewTextView(),
		Status:     tview.NewTextView().SetDynamicColors(true),
		Messages:   tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
		Editor:     tview.NewInputField().SetLabel(fenLabel),
		theme:      theme,
		log:        logger,
		highlights: make(map[chess.Square]bool),
	}
	cl.Moves.SetBorder(true).SetTitle("Moves")
	cl.Messages.SetBorder(true).SetTitle("Messages")
	cl.Menu.SetBorder(true).SetTitle("Menu")

	var names [2]string
	for i, p := range cfg.Players {
		names[i] = p.Name
	}
	cl.transcript = NewTranscript(names, cl.showMessage)
	cl.orch = NewOrchestrator(cfg, AppOwner{App: app}, ChessRules{}, cl, logger)

	side := tview.NewGrid().
		SetRows(3, -1, 3).
		AddItem(cl.Status, 0, 0, 1, 1, 0, 0, false).
		AddItem(cl.Moves, 1, 0, 1, 1, 0, 0, false).
		AddItem(cl.Editor, 2, 0, 1, 1, 0, 0, false)

	cl.Layout = tview.NewGrid().
		SetRows(-1, 11, 8, -1).
		SetColumns(-1, 30, 36, 22, -1).
		AddItem(tview.NewBox(), 0, 0, 1, 5, 0, 0, false).
		AddItem(cl.Board, 1, 1, 1, 1, 0, 0, true).
		AddItem(side, 1, 2, 2, 1, 0, 0, false).
		AddItem(cl.Menu, 1, 3, 2, 1, 0, 0, false).
		AddItem(cl.Messages, 2, 1, 1, 1, 0, 0, false).
		AddItem(tview.NewBox(), 3, 0, 1, 5, 0, 0, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyRune && ev.Rune() == pauseKey && !cl.Editor.HasFocus() {
			if err := cl.orch.TogglePause(); err != nil {
				cl.say("[red]" + err.Error())
			}
			cl.render()
			return nil
		}
		return ev
	})

	cl.initTable()
	cl.initEditor()
	cl.render()
	return cl
}

// Run blocks until the user exits, then stops the engines.
func (cl *Client) Run() error {
	err := cl.App.SetRoot(cl.Layout, true).EnableMouse(true).Run()
	<-cl.orch.Stop()
	return err
}

func (cl *Client) initTable() {
	cl.Board.SetSelectable(true, true)
	cl.Board.Select(0, 1).SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEscape:
			cl.App.Stop()
		case tcell.KeyTab:
			cl.App.SetFocus(cl.Menu)
		}
	}).SetSelectedFunc(func(row, col int) {
		sq, ok := gui.CellSquare(row, col, cl.flip)
		if !ok {
			return
		}
		cl.selectSquare(sq)
		cl.render()
	})
}

func (cl *Client) selectSquare(sq chess.Square) {
	if !cl.selecting {
		cl.highlights[sq] = true
		cl.selecting = true
		cl.lastSelection = sq
		return
	}
	from := cl.lastSelection
	delete(cl.highlights, from)
	cl.selecting = false
	cl.lastSelection = 0
	if sq == from { // chose the last square to deactivate
		return
	}
	m := cl.orch.Match()
	if m == nil {
		cl.say("[red]Start a game from the menu first")
		return
	}
	move := from.String() + sq.String()
	pos, rules := m.Position(), ChessRules{}
	if !rules.IsLegal(pos, move) && rules.IsLegal(pos, move+"q") {
		// TODO: let the player pick the promotion piece
		move += "q"
	}
	if err := cl.orch.SubmitMove(move); err != nil {
		cl.log.Info().Err(err).Str("move", move).Msg("move rejected")
		cl.say(fmt.Sprintf("[red]%s: %s", move, err))
	}
}

func (cl *Client) initEditor() {
	cl.Editor.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			cl.submitEditor()
		case tcell.KeyEscape:
			cl.editing, cl.pickingEngine = false, false
			cl.Editor.SetLabel(fenLabel)
			cl.App.SetFocus(cl.Menu)
			cl.render()
		}
	})
}

// submitEditor continues from the edited position, or sets the engine
// command being edited.
func (cl *Client) submitEditor() {
	if !cl.pickingEngine {
		cl.do(ActionContinue)
		return
	}
	cl.pickingEngine = false
	cl.Editor.SetLabel(fenLabel)
	if err := cl.setEngine(cl.engineSide, strings.TrimSpace(cl.Editor.GetText())); err != nil {
		cl.say("[red]" + err.Error())
	}
	cl.App.SetFocus(cl.Menu)
	cl.render()
}

// setEngine swaps the engine for side. A game in progress is stopped.
func (cl *Client) setEngine(side PlayerColor, line string) error {
	p, err := NewPlayer(config.EngineConfig{Command: line, MoveTime: cl.orch.Player(side).MoveTime})
	if err != nil {
		return fmt.Errorf("%s engine: %w", side, err)
	}
	cl.log.Info().Str("side", side.String()).Str("command", line).Msg("engine changed")
	cl.orch.SetPlayer(side, p)
	cl.transcript.Players[side] = p.Name
	cl.say(fmt.Sprintf("%s engine: %s", side, p.Name))
	return nil
}

func (cl *Client) refreshMenu() {
	current := cl.Menu.GetCurrentItem()
	cl.Menu.Clear()
	for i, a := range MenuActions(cl.orch.State(), cl.editing) {
		a := a
		cl.Menu.AddItem(string(a), "", rune('1'+i), func() { cl.do(a) })
	}
	if current < cl.Menu.GetItemCount() {
		cl.Menu.SetCurrentItem(current)
	}
}

func (cl *Client) do(a Action) {
	var err error
	switch a {
	case ActionPlayWhite:
		err = cl.newGame(Setup{Mode: HumanVsEngine, EngineSide: Black})
		cl.flip = false
	case ActionPlayBlack:
		err = cl.newGame(Setup{Mode: HumanVsEngine, EngineSide: White})
		cl.flip = true
	case ActionEngineMatch:
		err = cl.newGame(Setup{Mode: EngineVsEngine})
	case ActionPause:
		err = cl.orch.Pause()
	case ActionResume:
		err = cl.orch.Resume()
	case ActionStop:
		cl.editing = false
		cl.orch.Stop()
		cl.say("Game stopped")
	case ActionEdit:
		cl.editing, cl.pickingEngine = true, false
		cl.Editor.SetLabel(fenLabel).SetText(cl.currentPosition().String())
		cl.App.SetFocus(cl.Editor)
	case ActionContinue, ActionContinueEvE:
		mode := HumanVsEngine
		if a == ActionContinueEvE {
			mode = EngineVsEngine
		}
		fen := strings.TrimSpace(cl.Editor.GetText())
		if err = cl.orch.ContinueFrom(fen, mode); err == nil {
			cl.editing = false
			cl.flip = mode == HumanVsEngine && ColorOf(mustTurn(fen)) == Black
			cl.App.SetFocus(cl.Board)
		}
	case ActionWhiteEngine, ActionBlackEngine:
		side := White
		if a == ActionBlackEngine {
			side = Black
		}
		cl.editing, cl.pickingEngine, cl.engineSide = false, true, side
		cl.Editor.SetLabel(side.String() + " engine: ").SetText(cl.orch.Player(side).Command)
		cl.App.SetFocus(cl.Editor)
	case ActionFlip:
		cl.flip = !cl.flip
	case ActionExit:
		cl.App.Stop()
		return
	}
	if err != nil {
		cl.say("[red]" + err.Error())
	}
	cl.render()
}

func (cl *Client) newGame(setup Setup) error {
	cl.selecting = false
	cl.highlights = make(map[chess.Square]bool)
	cl.eval = uci.SearchResult{}
	cl.say("Starting engines...")
	cl.App.SetFocus(cl.Board)
	return cl.orch.NewGame(setup)
}

func mustTurn(fen string) chess.Color {
	pos, err := StartingPosition(fen)
	if err != nil {
		return chess.White
	}
	return pos.Turn()
}

func (cl *Client) currentPosition() *chess.Position {
	if m := cl.orch.Match(); m != nil {
		return m.Position()
	}
	return chess.NewGame().Position()
}

func (cl *Client) render() {
	pos := cl.currentPosition()
	var last *chess.Move
	startBlack := false
	var san []string
	if m := cl.orch.Match(); m != nil {
		if n := m.Ply(); n > 0 {
			last = gui.FindMove(m.Positions[n-1], m.Moves[n-1])
		}
		startBlack = m.Positions[0].Turn() == chess.Black
		san = m.SAN()
	}
	gui.DrawBoard(cl.Board, pos, gui.Board{
		Flip:      cl.flip,
		Selected:  cl.highlights,
		LastMove:  last,
		CheckKing: gui.CheckedKing(last, pos.Turn()),
	}, cl.theme)
	cl.Moves.SetText(strings.Join(gui.MoveRows(san, startBlack, moveListRows), "\n"))
	cl.Status.SetText(cl.statusText(pos))
	cl.refreshMenu()
}

func (cl *Client) statusText(pos *chess.Position) string {
	s := cl.orch.State()
	var sb strings.Builder
	switch {
	case cl.editing:
		sb.WriteString("Editing position")
	case cl.pickingEngine:
		fmt.Fprintf(&sb, "Choosing %s engine", cl.engineSide)
	case !s.Active:
		sb.WriteString("No game")
	case s.Thinking:
		fmt.Fprintf(&sb, "[#%06x]%s thinking[-]", cl.theme.Thinking.Hex(), ColorOf(pos.Turn()))
	case s.Paused:
		sb.WriteString("Paused")
	default:
		fmt.Fprintf(&sb, "%s to move", ColorOf(pos.Turn()))
	}
	fmt.Fprintf(&sb, "  %s\n", cl.transcript.Clock)
	if cl.eval.BestMove != "" {
		prob := 0.5
		if cl.eval.Mate != nil {
			if *cl.eval.Mate > 0 {
				prob = 1
			} else {
				prob = 0
			}
		} else if cl.eval.CP != nil {
			prob = gui.WinProb(*cl.eval.CP)
		}
		// engine scores are from the side to move
		if cl.evalSide == Black {
			prob = 1 - prob
		}
		fmt.Fprintf(&sb, "[#%06x]%s[-] %s", cl.theme.MeterColor(prob).Hex(), gui.Meter(prob, meterWidth), cl.eval.Eval())
	}
	return sb.String()
}

func (cl *Client) say(text string) {
	fmt.Fprintln(cl.Messages, text)
	cl.Messages.ScrollToEnd()
}

func (cl *Client) showMessage(m MessageInterface) {
	switch m := m.(type) {
	case MessageSearch:
		// the status line shows who is thinking
		return
	case MessageEngine:
		cl.say("[red]" + Text(m))
	case MessageGameOver:
		cl.say(fmt.Sprintf("[#%06x]%s", cl.theme.Msg.Hex(), Text(m)))
	default:
		cl.say(Text(m))
	}
}

// View

func (cl *Client) GameStarted(m *Match, s TurnState) {
	cl.transcript.GameStarted(m, s)
	cl.render()
}

func (cl *Client) MoveApplied(m *Match, move string) {
	cl.transcript.MoveApplied(m, move)
	cl.render()
}

func (cl *Client) SearchStarted(side PlayerColor) {
	cl.transcript.SearchStarted(side)
	cl.render()
}

func (cl *Client) SearchFinished(side PlayerColor, res uci.SearchResult) {
	cl.transcript.SearchFinished(side, res)
	if res.CP != nil || res.Mate != nil {
		cl.eval, cl.evalSide = res, side
	}
	cl.render()
}

func (cl *Client) EngineUnavailable(err error) {
	cl.transcript.EngineUnavailable(err)
	if errors.Is(err, uci.ErrStartup) {
		cl.say("Check CHESSBRIDGE_WHITE_ENGINE / CHESSBRIDGE_BLACK_ENGINE")
	}
	cl.render()
}

func (cl *Client) GameOver(m *Match, method chess.Method) {
	cl.transcript.GameOver(m, method)
	cl.render()
}
