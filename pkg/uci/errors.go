package uci

import "errors"

var (
	// ErrStartup means the engine process failed to launch or never
	// acknowledged the handshake or readiness probe.
	ErrStartup = errors.New("engine startup failure")

	// ErrMalformedLine is returned when a result line is missing the best move.
	ErrMalformedLine = errors.New("malformed protocol line")

	// ErrUnavailable means the engine exited, closed its output or stopped
	// answering in the middle of an exchange.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrShutdownTimeout is logged when the engine ignored quit and had to be killed.
	ErrShutdownTimeout = errors.New("engine shutdown timeout")
)
