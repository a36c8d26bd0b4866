package pkg

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// InitLog opens dest for appending and returns a logger writing to it. The
// terminal belongs to the UI, so nothing is ever logged to stdout. Close the
// returned writer on exit.
func InitLog(dest, level, prefix string) (zerolog.Logger, io.WriteCloser, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	f, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("error opening file: %w", err)
	}
	return NewLogger(f, lvl, prefix), f, nil
}

func NewLogger(w io.Writer, lvl zerolog.Level, prefix string) zerolog.Logger {
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("app", strings.TrimSpace(strings.TrimSuffix(prefix, ":"))).
		Logger()
}
