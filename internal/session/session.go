// Package session runs an interactive shell in a pseudo-terminal and pumps
// its output through a middleware chain.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/middleware"
)

const (
	DefaultChunkSize    = 4096
	DefaultDrainTimeout = 250 * time.Millisecond
)

// Options configures a Session. Shell and Output are required.
type Options struct {
	Shell Shell
	// Args are appended to Shell.Args.
	Args []string
	Dir  string
	// Env is added to the current environment.
	Env []string
	// Name is exported to the shell as OSCWATCH_SESSION.
	Name string

	// Stdin is copied to the shell. Nil means no input.
	Stdin io.Reader
	// Host is the controlling terminal. When it is a terminal it is put in
	// raw mode and its size is mirrored onto the PTY.
	Host *os.File

	Output middleware.Middleware

	ChunkSize int
	// DrainTimeout bounds how long output is read after the shell exited;
	// background jobs may keep the PTY open.
	DrainTimeout time.Duration

	Logger *clog.Logger
}

// Session is a single shell run. It cannot be restarted.
type Session struct {
	opts   Options
	logger *clog.Logger

	mu      sync.Mutex
	started bool

	// feedMu serializes the pump against closing the chain.
	feedMu sync.Mutex
	closed bool
}

// New validates opts and returns a Session ready to Run.
func New(opts Options) (*Session, error) {
	if opts.Output == nil {
		return nil, ErrNoOutput
	}
	if opts.Shell.Path == "" {
		return nil, ErrShellNotFound
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Session{opts: opts, logger: logging.OrDiscard(opts.Logger)}, nil
}

// Run starts the shell and blocks until it exits or ctx is cancelled. It
// closes the output chain exactly once and returns the shell's exit code,
// which is -1 when the shell was killed by a signal.
func (s *Session) Run(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return -1, ErrSessionClosed
	}
	s.started = true
	s.mu.Unlock()
	defer s.closeOutput()

	args := append(append([]string(nil), s.opts.Shell.Args...), s.opts.Args...)
	cmd := exec.Command(s.opts.Shell.Path, args...)
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(), s.opts.Env...)
	if s.opts.Name != "" {
		cmd.Env = append(cmd.Env, EnvSessionID+"="+s.opts.Name)
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("start %s: %w", s.opts.Shell.Path, err)
	}
	defer func() { _ = ptmx.Close() }()
	s.logger.Debug("shell started", "shell", s.opts.Shell.Path, "pid", cmd.Process.Pid)

	if host := s.opts.Host; host != nil && term.IsTerminal(int(host.Fd())) {
		stop := watchResize(host, ptmx, s.logger)
		defer stop()

		fd := int(host.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			s.logger.Warn("could not put terminal in raw mode", "err", err)
		} else {
			defer func() { _ = term.Restore(fd, state) }()
		}
	}

	if s.opts.Stdin != nil {
		go func() {
			if _, err := io.Copy(ptmx, s.opts.Stdin); err != nil {
				s.logger.Debug("stdin copy stopped", "err", err)
			}
		}()
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pump(ptmx)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		s.logger.Debug("context cancelled, killing shell")
		_ = cmd.Process.Kill()
		waitErr = <-waitDone
	}

	s.drain(ptmx, pumpDone)

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return -1, fmt.Errorf("wait for shell: %w", waitErr)
		}
		code = exitErr.ExitCode()
	}
	if err := ctx.Err(); err != nil {
		return code, err
	}
	return code, nil
}

// drain gives the pump a bounded time to read what the shell left in the
// PTY, then closes the PTY to stop it.
func (s *Session) drain(ptmx *os.File, pumpDone <-chan struct{}) {
	select {
	case <-pumpDone:
		return
	case <-time.After(s.opts.DrainTimeout):
	}
	s.logger.Debug("output still open after shell exit, closing pty")
	_ = ptmx.Close()
	select {
	case <-pumpDone:
	case <-time.After(s.opts.DrainTimeout):
		s.logger.Debug("pty reader did not stop, abandoning it")
	}
}

func (s *Session) pump(r io.Reader) {
	buf := make([]byte, s.opts.ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if err != nil {
			// Linux reports EIO once the shell side is gone.
			s.logger.Debug("pty read stopped", "err", err)
			return
		}
	}
}

func (s *Session) feed(chunk []byte) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.closed {
		return
	}
	s.opts.Output.FeedFromSession(chunk)
}

func (s *Session) closeOutput() {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.opts.Output.Close()
}
