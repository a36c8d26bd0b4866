// Package engine ties a uci.Client to the lifetime of one game.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/rs/zerolog"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

const (
	DefaultStartupTimeout = 10 * time.Second
	DefaultQuitTimeout    = 2 * time.Second
	DefaultSearchGrace    = 5 * time.Second
)

var ErrUnavailable = uci.ErrUnavailable

type Config struct {
	Options        []uci.Option
	StartupTimeout time.Duration
	QuitTimeout    time.Duration
	// SearchGrace is how long past the move time we wait for bestmove
	// before declaring the engine hung.
	SearchGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.QuitTimeout <= 0 {
		c.QuitTimeout = DefaultQuitTimeout
	}
	if c.SearchGrace <= 0 {
		c.SearchGrace = DefaultSearchGrace
	}
	return c
}

// Session owns one engine process for the duration of a game.
type Session struct {
	Name string

	cfg    Config
	client *uci.Client
	log    zerolog.Logger

	mu         sync.Mutex
	terminated bool
	once       sync.Once
	gone       chan struct{}
}

// Start launches the engine and completes the handshake. The returned
// error wraps uci.ErrStartup.
func Start(ctx context.Context, cfg Config, l uci.Launcher, logger zerolog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	name := petname.Generate(2, "-")
	logger = logger.With().Str("session", name).Logger()

	client := uci.NewClient(l, logger)
	ctx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	start := time.Now()
	if err := client.Start(ctx, cfg.Options...); err != nil {
		logger.Error().Err(err).Msg("engine failed to start")
		return nil, err
	}
	if err := client.NewGame(ctx); err != nil {
		client.Shutdown(cfg.QuitTimeout)
		logger.Error().Err(err).Msg("engine rejected new game")
		return nil, fmt.Errorf("%w: %w", uci.ErrStartup, err)
	}
	logger.Info().Dur("took", time.Since(start)).Msg("engine ready")

	return &Session{
		Name:   name,
		cfg:    cfg,
		client: client,
		log:    logger,
		gone:   make(chan struct{}),
	}, nil
}

// Request runs one full exchange: position, readiness probe, search. It
// blocks until the engine answers, so call it off the goroutine that owns
// game state. Every failure wraps ErrUnavailable.
func (s *Session) Request(ctx context.Context, req uci.SearchRequest) (uci.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return uci.SearchResult{}, fmt.Errorf("%w: session %s terminated", ErrUnavailable, s.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, req.MoveTime+s.cfg.SearchGrace)
	defer cancel()

	if err := s.client.SetPosition(req); err != nil {
		return uci.SearchResult{}, err
	}
	res, err := s.client.Search(ctx, req.MoveTime)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		s.log.Warn().Err(err).Msg("search failed")
		return uci.SearchResult{}, err
	}
	s.log.Debug().Str("bestmove", res.BestMove).Str("eval", res.Eval()).Msg("search done")
	return res, nil
}

// Terminate quits the engine, killing it if it ignores quit. It does not
// wait; the returned channel closes once the process is gone. Calling it
// again returns the same channel.
func (s *Session) Terminate() <-chan struct{} {
	s.once.Do(func() {
		go func() {
			defer close(s.gone)
			// a search in progress sees its stream close and releases mu
			forced := s.client.Shutdown(s.cfg.QuitTimeout)
			s.mu.Lock()
			s.terminated = true
			s.mu.Unlock()
			s.log.Info().Bool("forced", forced).Msg("engine terminated")
		}()
	})
	return s.gone
}

func (s *Session) State() uci.State {
	return s.client.State()
}
