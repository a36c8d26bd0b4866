package pkg

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"

	"github.com/qnkhuat/chessbridge/pkg/config"
)

// Server hands every ssh session its own terminal client running in a pty.
// Sessions do not share anything: each one starts its own engines.
type Server struct {
	*ssh.Server
	ClientPath string
	ClientArgs []string
	log        zerolog.Logger
}

func NewServer(cfg config.ServerConfig, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		ClientPath: cfg.ClientPath,
		log:        logger,
	}
	s.Server = &ssh.Server{
		Addr:        cfg.Addr,
		IdleTimeout: cfg.IdleTimeout,
		Handler:     s.handle,
	}
	if cfg.HostKeyPath != "" {
		if err := s.SetOption(ssh.HostKeyFile(cfg.HostKeyPath)); err != nil {
			return nil, fmt.Errorf("host key %s: %w", cfg.HostKeyPath, err)
		}
		return s, nil
	}
	signer, err := ephemeralHostKey()
	if err != nil {
		return nil, err
	}
	logger.Warn().Str("fingerprint", gossh.FingerprintSHA256(signer.PublicKey())).
		Msg("no host key configured, using a throwaway one")
	s.AddHostKey(signer)
	return s, nil
}

func ephemeralHostKey() (gossh.Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	return gossh.NewSignerFromKey(key)
}

func (s *Server) handle(sess ssh.Session) {
	log := s.log.With().
		Str("session", uuid.NewString()).
		Str("user", sess.User()).
		Str("remote", sess.RemoteAddr().String()).
		Logger()

	ptyReq, winCh, isPty := sess.Pty()
	if !isPty {
		io.WriteString(sess, "non-interactive terminals are not supported\n")
		sess.Exit(1)
		return
	}
	log.Info().Str("term", ptyReq.Term).Msg("session started")

	cmdCtx, cancelCmd := context.WithCancel(sess.Context())
	defer cancelCmd()

	cmd := exec.CommandContext(cmdCtx, s.ClientPath, s.ClientArgs...)
	cmd.Env = clientEnv(os.Environ(), ptyReq.Term)
	if ignored := sess.Environ(); len(ignored) > 0 {
		log.Debug().Strs("env", ignored).Msg("ignoring client environment")
	}

	f, err := pty.StartWithSize(cmd, winsize(ptyReq.Window))
	if err != nil {
		log.Error().Err(err).Str("client", s.ClientPath).Msg("failed to start client")
		io.WriteString(sess, fmt.Sprintf("failed to initialize pseudo-terminal: %s\n", err))
		sess.Exit(1)
		return
	}
	defer f.Close()

	go func() {
		for win := range winCh {
			if err := pty.Setsize(f, winsize(win)); err != nil {
				log.Debug().Err(err).Msg("resize")
			}
		}
	}()

	go func() {
		io.Copy(f, sess)
	}()
	io.Copy(sess, f)

	code := 0
	if err := cmd.Wait(); err != nil {
		log.Info().Err(err).Msg("client exited")
		code = 1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}
	log.Info().Int("code", code).Msg("session ended")
	sess.Exit(code)
}

// clientEnv is the server's own environment with the terminal type of the
// session. Nothing the ssh client sends is passed on: engine commands and
// log paths come from the server's configuration only.
func clientEnv(base []string, term string) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, "TERM=") {
			env = append(env, kv)
		}
	}
	return append(env, "TERM="+term)
}

func winsize(w ssh.Window) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(w.Height), Cols: uint16(w.Width)}
}
