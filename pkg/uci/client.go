// Package uci drives an external engine process over the UCI line protocol.
//
// A Client owns exactly one process. Every call that waits on the engine
// blocks the calling goroutine, so callers that own UI or game state run
// them on a worker and hand the outcome back themselves.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type State int32

const (
	Unstarted State = iota
	Handshaking
	Ready
	Searching
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "Unstarted"
	case Handshaking:
		return "Handshaking"
	case Ready:
		return "Ready"
	case Searching:
		return "Searching"
	case ShuttingDown:
		return "ShuttingDown"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Option is a `setoption` pair sent during the handshake.
type Option struct {
	Name  string
	Value string
}

const (
	lineQueueSize  = 64
	maxLineLength  = 1 << 20
	killWaitBudget = 2 * time.Second
)

var errClosed = errors.New("engine closed its output")

type Client struct {
	launcher Launcher
	log      zerolog.Logger

	proc   Process
	w      *bufio.Writer
	wmu    sync.Mutex
	lines  chan string
	exited chan struct{}
	done   chan struct{}
	state  atomic.Int32
	once   sync.Once
}

func NewClient(l Launcher, logger zerolog.Logger) *Client {
	return &Client{
		launcher: l,
		log:      logger,
		done:     make(chan struct{}),
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Exited is closed once the process has exited. It is nil before Start.
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

// Start launches the process and completes the uci/uciok and
// isready/readyok exchanges, in that order. ctx bounds the whole handshake.
func (c *Client) Start(ctx context.Context, options ...Option) error {
	c.setState(Handshaking)
	proc, err := c.launcher.Launch()
	if err != nil {
		c.finish()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	c.attach(proc)

	if err := c.handshake(ctx, options); err != nil {
		c.kill()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	c.setState(Ready)
	return nil
}

func (c *Client) handshake(ctx context.Context, options []Option) error {
	if err := c.send("uci"); err != nil {
		return err
	}
	if _, err := c.waitFor(ctx, func(line string) bool {
		return strings.Contains(line, "uciok")
	}); err != nil {
		return fmt.Errorf("waiting for uciok: %w", err)
	}
	for _, opt := range options {
		if err := c.send(fmt.Sprintf("setoption name %s value %s", opt.Name, opt.Value)); err != nil {
			return err
		}
	}
	return c.sync(ctx)
}

// NewGame tells the engine that following searches belong to a new game.
func (c *Client) NewGame(ctx context.Context) error {
	if err := c.send("ucinewgame"); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := c.sync(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// SetPosition sends the position line for the request.
func (c *Client) SetPosition(req SearchRequest) error {
	if err := c.send(req.Command()); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Search runs `go movetime` on the position last set and reads until the
// bestmove line. Calls must not overlap.
func (c *Client) Search(ctx context.Context, moveTime time.Duration) (SearchResult, error) {
	switch c.State() {
	case Unstarted, ShuttingDown, Terminated:
		return SearchResult{}, fmt.Errorf("%w: client is %s", ErrUnavailable, c.State())
	}
	c.setState(Searching)

	if err := c.sync(ctx); err != nil {
		return SearchResult{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ms := moveTime.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := c.send(fmt.Sprintf("go movetime %d", ms)); err != nil {
		return SearchResult{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var res SearchResult
	for {
		line, err := c.next(ctx)
		if err != nil {
			return SearchResult{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		done, err := res.feed(line)
		if err != nil {
			return SearchResult{}, err
		}
		if done {
			break
		}
	}
	c.state.CompareAndSwap(int32(Searching), int32(Ready))
	return res, nil
}

// Shutdown sends quit and waits up to timeout for the process to exit,
// killing it otherwise. It never fails; it reports whether a kill was needed.
func (c *Client) Shutdown(timeout time.Duration) (forced bool) {
	if c.State() == Terminated {
		return false
	}
	if c.proc == nil {
		c.finish()
		return false
	}
	c.setState(ShuttingDown)
	c.drain()
	_ = c.send("quit")

	select {
	case <-c.exited:
	case <-time.After(timeout):
		c.log.Warn().Err(ErrShutdownTimeout).Dur("timeout", timeout).Msg("killing engine")
		forced = true
		c.kill()
	}
	c.finish()
	return forced
}

// drain discards unread output so the reader can reach EOF.
func (c *Client) drain() {
	go func(lines <-chan string) {
		for range lines {
		}
	}(c.lines)
}

func (c *Client) kill() {
	c.drain()
	if err := c.proc.Kill(); err != nil {
		c.log.Debug().Err(err).Msg("kill")
	}
	select {
	case <-c.exited:
	case <-time.After(killWaitBudget):
		c.log.Error().Msg("engine did not exit after kill")
	}
	c.finish()
}

func (c *Client) finish() {
	c.once.Do(func() {
		close(c.done)
	})
	c.setState(Terminated)
}

func (c *Client) attach(proc Process) {
	c.proc = proc
	c.w = bufio.NewWriter(proc.Stdin())
	c.lines = make(chan string, lineQueueSize)
	c.exited = make(chan struct{})

	read := make(chan struct{})
	go func() {
		defer close(c.lines)
		defer close(read)
		scanner := bufio.NewScanner(proc.Stdout())
		scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
		for scanner.Scan() {
			select {
			case c.lines <- scanner.Text():
			case <-c.done:
				return
			}
		}
	}()

	go func() {
		// Wait closes stdout, so the last lines must be read first.
		<-read
		err := proc.Wait()
		c.log.Debug().Err(err).Msg("engine exited")
		close(c.exited)
	}()
}

func (c *Client) send(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.w == nil {
		return errClosed
	}
	c.log.Trace().Str("dir", "out").Msg(line)
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		return err
	}
	return c.w.Flush()
}

// sync is the isready/readyok round trip that orders us after any
// earlier output.
func (c *Client) sync(ctx context.Context) error {
	if err := c.send("isready"); err != nil {
		return err
	}
	if _, err := c.waitFor(ctx, func(line string) bool {
		return strings.TrimSpace(line) == "readyok"
	}); err != nil {
		return fmt.Errorf("waiting for readyok: %w", err)
	}
	return nil
}

func (c *Client) waitFor(ctx context.Context, match func(string) bool) (string, error) {
	for {
		line, err := c.next(ctx)
		if err != nil {
			return "", err
		}
		if match(line) {
			return line, nil
		}
	}
}

func (c *Client) next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", errClosed
		}
		c.log.Trace().Str("dir", "in").Msg(line)
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
