package uci

import (
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/anmitsu/go-shlex"
)

// Process is a running engine as seen by the client.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	// Wait blocks until the process has exited.
	Wait() error
	Kill() error
}

// Launcher starts engine processes.
type Launcher interface {
	Launch() (Process, error)
}

// Command is an engine executable and its arguments.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// ParseCommand splits a shell style command line such as
// `stockfish` or `"/opt/My Engine/engine" --threads 2`.
func ParseCommand(line string) (Command, error) {
	words, err := shlex.Split(line, true)
	if err != nil {
		return Command{}, fmt.Errorf("parse engine command %q: %w", line, err)
	}
	if len(words) == 0 {
		return Command{}, errors.New("empty engine command")
	}
	return Command{Path: words[0], Args: words[1:]}, nil
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// Launch starts the executable with stdin/stdout piped.
func (c Command) Launch() (Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
