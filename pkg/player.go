package pkg

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/notnil/chess"

	"github.com/qnkhuat/chessbridge/pkg/config"
	"github.com/qnkhuat/chessbridge/pkg/engine"
	"github.com/qnkhuat/chessbridge/pkg/uci"
)

type PlayerColor int

const (
	White PlayerColor = iota
	Black
)

func (pc PlayerColor) String() string {
	switch pc {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "Unknown"
	}
}

func (pc PlayerColor) Other() PlayerColor {
	return 1 - pc
}

func ColorOf(c chess.Color) PlayerColor {
	if c == chess.Black {
		return Black
	}
	return White
}

type Mode int

const (
	HumanVsEngine Mode = iota
	EngineVsEngine
)

func (m Mode) String() string {
	switch m {
	case HumanVsEngine:
		return "HumanVsEngine"
	case EngineVsEngine:
		return "EngineVsEngine"
	default:
		return "Unknown"
	}
}

// Player is the engine configured for one side.
type Player struct {
	Name string
	// Command is the command line Launcher was parsed from, if any.
	Command  string
	Launcher uci.Launcher
	MoveTime time.Duration
}

func NewPlayer(ec config.EngineConfig) (Player, error) {
	cmd, err := uci.ParseCommand(ec.Command)
	if err != nil {
		return Player{}, err
	}
	return Player{
		Name:     filepath.Base(cmd.Path),
		Command:  ec.Command,
		Launcher: cmd,
		MoveTime: ec.MoveTime,
	}, nil
}

// NewConfig builds the orchestrator configuration from the loaded
// environment.
func NewConfig(c *config.Config) (Config, error) {
	var cfg Config
	for side, ec := range [2]config.EngineConfig{c.White, c.Black} {
		p, err := NewPlayer(ec)
		if err != nil {
			return Config{}, fmt.Errorf("%s engine: %w", PlayerColor(side), err)
		}
		cfg.Players[side] = p
	}
	cfg.Engine = engine.Config{
		Options:        c.Engine.Options,
		StartupTimeout: c.Engine.StartupTimeout,
		QuitTimeout:    c.Engine.QuitTimeout,
		SearchGrace:    c.Engine.SearchGrace,
	}
	cfg.Delay = c.Delay
	return cfg, nil
}
