// Package enginetest provides a scripted in-memory UCI engine for tests.
package enginetest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/notnil/chess"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

// Responder returns the lines the engine prints for one `go` command.
// position is the last position line received.
type Responder func(position, goLine string) []string

// Engine is a fake engine process. The zero value is not usable; use New.
type Engine struct {
	Respond Responder

	// Silent engines never answer uci, to exercise startup timeouts.
	Silent bool
	// IgnoreQuit engines keep running after quit until killed.
	IgnoreQuit bool
	// Hang makes the engine swallow go commands without answering.
	Hang bool
	// CrashOnGo makes the engine exit as soon as it receives go.
	CrashOnGo bool

	mu       sync.Mutex
	received []string
	launches int
	killed   int
	procs    []*Process
}

func New(respond Responder) *Engine {
	return &Engine{Respond: respond}
}

// BestMove answers every search with a single bestmove line.
func BestMove(move string) Responder {
	return func(string, string) []string {
		return []string{"bestmove " + move}
	}
}

// Lines answers every search with the given lines.
func Lines(lines ...string) Responder {
	return func(string, string) []string {
		return lines
	}
}

// Received returns every command line the engine has read so far.
func (e *Engine) Received() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

// Saw reports whether a received line starts with prefix.
func (e *Engine) Saw(prefix string) bool {
	for _, line := range e.Received() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (e *Engine) Launches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

func (e *Engine) Kills() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killed
}

func (e *Engine) record(line string) {
	e.mu.Lock()
	e.received = append(e.received, line)
	e.mu.Unlock()
}

// Launch implements uci.Launcher.
func (e *Engine) Launch() (uci.Process, error) {
	e.mu.Lock()
	e.launches++
	e.mu.Unlock()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &Process{
		engine: e,
		stdin:  inW,
		stdout: outR,
		inR:    inR,
		outW:   outW,
		exited: make(chan struct{}),
	}
	e.mu.Lock()
	e.procs = append(e.procs, p)
	e.mu.Unlock()
	go p.run()
	return p, nil
}

// Process is one running fake engine.
type Process struct {
	engine *Engine
	stdin  *io.PipeWriter
	stdout *io.PipeReader
	inR    *io.PipeReader
	outW   *io.PipeWriter

	once   sync.Once
	exited chan struct{}
}

func (p *Process) Stdin() io.Writer  { return p.stdin }
func (p *Process) Stdout() io.Reader { return p.stdout }

func (p *Process) Wait() error {
	<-p.exited
	return nil
}

func (p *Process) Kill() error {
	p.engine.mu.Lock()
	p.engine.killed++
	p.engine.mu.Unlock()
	p.exit()
	return nil
}

func (p *Process) exit() {
	p.once.Do(func() {
		p.inR.CloseWithError(errors.New("engine exited"))
		p.outW.Close()
		close(p.exited)
	})
}

func (p *Process) println(line string) {
	_, _ = fmt.Fprintln(p.outW, line)
}

func (p *Process) run() {
	e := p.engine
	var position string
	scanner := bufio.NewScanner(p.inR)
	for scanner.Scan() {
		line := scanner.Text()
		e.record(line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			if e.Silent {
				continue
			}
			p.println("id name fake")
			p.println("id author enginetest")
			p.println("uciok")
		case "isready":
			p.println("readyok")
		case "position":
			position = line
		case "go":
			if e.CrashOnGo {
				p.exit()
				return
			}
			if e.Hang {
				continue
			}
			for _, out := range e.Respond(position, line) {
				p.println(out)
			}
		case "quit":
			if e.IgnoreQuit {
				continue
			}
			p.exit()
			return
		}
	}
	p.exit()
}

// FirstLegalMove plays the first legal move notnil/chess generates, or
// "0000" when there is none.
func FirstLegalMove() Responder {
	return func(position, _ string) []string {
		pos, err := replay(position)
		if err != nil {
			return []string{"info string " + err.Error(), "bestmove 0000"}
		}
		moves := pos.ValidMoves()
		if len(moves) == 0 {
			return []string{"bestmove 0000"}
		}
		return []string{
			"info depth 1 score cp 0 pv " + moves[0].String(),
			"bestmove " + moves[0].String(),
		}
	}
}

func replay(position string) (*chess.Position, error) {
	fields := strings.Fields(position)
	if len(fields) < 2 || fields[0] != "position" {
		return nil, fmt.Errorf("bad position line %q", position)
	}
	opts := []func(*chess.Game){chess.UseNotation(chess.UCINotation{})}
	rest := fields[2:]
	if fields[1] == "fen" {
		if len(fields) < 8 {
			return nil, fmt.Errorf("bad fen in %q", position)
		}
		fen, err := chess.FEN(strings.Join(fields[2:8], " "))
		if err != nil {
			return nil, err
		}
		opts = append(opts, fen)
		rest = fields[8:]
	}
	game := chess.NewGame(opts...)
	if len(rest) > 0 && rest[0] == "moves" {
		for _, mv := range rest[1:] {
			if err := game.MoveStr(mv); err != nil {
				return nil, err
			}
		}
	}
	return game.Position(), nil
}
