package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"

	"github.com/qnkhuat/chessbridge/pkg/uci"
)

const Prefix = "CHESSBRIDGE_"

type Config struct {
	Logs   LogConfig
	White  EngineConfig
	Black  EngineConfig
	Engine SessionConfig
	Server ServerConfig
	// Delay paces engine-vs-engine games between moves.
	Delay time.Duration
}

type LogConfig struct {
	Path  string
	Level string
}

// EngineConfig is the engine playing one side.
type EngineConfig struct {
	// Command is a shell-style command line, e.g. "stockfish" or
	// "/opt/lc0 --weights=net.pb".
	Command  string
	MoveTime time.Duration
}

type SessionConfig struct {
	Options        []uci.Option
	StartupTimeout time.Duration
	QuitTimeout    time.Duration
	SearchGrace    time.Duration
}

type ServerConfig struct {
	Addr        string
	HostKeyPath string
	ClientPath  string
	IdleTimeout time.Duration
}

// Load reads the CHESSBRIDGE_* environment, including whatever a .env file
// in the working directory sets. Unset values keep their defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Logs: LogConfig{
			Path:  env("LOG_PATH", "./chessbridge.log"),
			Level: env("LOG_LEVEL", "info"),
		},
		White: EngineConfig{Command: env("WHITE_ENGINE", env("ENGINE", "stockfish"))},
		Black: EngineConfig{Command: env("BLACK_ENGINE", env("ENGINE", "stockfish"))},
		Server: ServerConfig{
			Addr:        env("SSH_ADDR", ":2222"),
			HostKeyPath: env("SSH_HOST_KEY", ""),
			ClientPath:  env("CLIENT_PATH", "chessterm"),
		},
	}

	moveTime, err := millis("MOVE_TIME", 1000)
	if err != nil {
		return nil, err
	}
	if cfg.White.MoveTime, err = millis("WHITE_MOVE_TIME", moveTime.Milliseconds()); err != nil {
		return nil, err
	}
	if cfg.Black.MoveTime, err = millis("BLACK_MOVE_TIME", moveTime.Milliseconds()); err != nil {
		return nil, err
	}
	if cfg.Engine.StartupTimeout, err = millis("STARTUP_TIMEOUT", 10000); err != nil {
		return nil, err
	}
	if cfg.Engine.QuitTimeout, err = millis("QUIT_TIMEOUT", 2000); err != nil {
		return nil, err
	}
	if cfg.Engine.SearchGrace, err = millis("SEARCH_GRACE", 5000); err != nil {
		return nil, err
	}
	if cfg.Delay, err = millis("DELAY", 500); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = millis("SSH_IDLE_TIMEOUT", 5*60*1000); err != nil {
		return nil, err
	}
	if cfg.Engine.Options, err = ParseOptions(env("ENGINE_OPTIONS", "")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseOptions reads "Name=Value" pairs separated by semicolons, e.g.
// "Threads=2;Skill Level=10".
func ParseOptions(s string) ([]uci.Option, error) {
	var opts []uci.Option
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parsing %sENGINE_OPTIONS: bad option %q", Prefix, pair)
		}
		opts = append(opts, uci.Option{Name: name, Value: strings.TrimSpace(value)})
	}
	return opts, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(Prefix + key); ok && v != "" {
		return v
	}
	return def
}

func millis(key string, def int64) (time.Duration, error) {
	v := env(key, "")
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s%s: %w", Prefix, key, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("parsing %s%s: negative duration %d", Prefix, key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
