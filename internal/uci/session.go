// Package uci drives a UCI chess engine over its standard process I/O.
//
// A Session owns one long-lived engine process. Evaluate is
// single-flight: calls serialize on an internal mutex, so one Session
// can be shared by a whole run without reimplementing the protocol.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sentinel errors for well-defined engine failure modes.
var (
	// ErrUnavailable indicates the engine executable could not be
	// started or did not complete the handshake.
	ErrUnavailable = errors.New("uci: engine unavailable")

	// ErrProtocol indicates engine output could not be parsed.
	ErrProtocol = errors.New("uci: protocol error")

	// ErrTimeout indicates the engine produced no terminal search
	// signal within the bounded wait.
	ErrTimeout = errors.New("uci: engine timeout")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("uci: session closed")
)

// Evaluation is the engine's best answer for one position.
type Evaluation struct {
	// Depth is the depth of the authoritative info line.
	Depth int

	// CP is the score in centipawns from the side to move.
	// Nil when the engine reports a forced mate.
	CP *int

	// Mate is the forced mate distance from the side to move.
	// Nil when the score is in centipawns.
	Mate *int

	// BestMove is the engine's chosen move in UCI notation.
	// Empty when the position is terminal (engine reported "(none)").
	BestMove string
}

// Session manages one evaluator process: start, configure, evaluate,
// stop. Safe for concurrent use; evaluations serialize internally.
type Session struct {
	path             string
	options          [][2]string
	handshakeTimeout time.Duration
	moveTimeout      time.Duration
	graceTimeout     time.Duration
	logger           *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	lines      <-chan string
	readerDone chan struct{}
	closed     bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHandshakeTimeout bounds the uci/isready handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithMoveTimeout bounds each Evaluate call.
func WithMoveTimeout(d time.Duration) Option {
	return func(s *Session) { s.moveTimeout = d }
}

// WithEngineOption adds a "setoption" pair sent after the handshake,
// e.g. ("Threads", "1"). Options are replayed on restart.
func WithEngineOption(name, value string) Option {
	return func(s *Session) { s.options = append(s.options, [2]string{name, value}) }
}

// New launches the engine process and performs the UCI handshake.
// Returns ErrUnavailable if the executable is missing or the handshake
// times out.
func New(path string, opts ...Option) (*Session, error) {
	s := &Session{
		path:             path,
		handshakeTimeout: 10 * time.Second,
		moveTimeout:      30 * time.Second,
		graceTimeout:     2 * time.Second,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

// start launches the process and completes the handshake. Callers hold
// no lock during New; Restart holds s.mu.
func (s *Session) start() error {
	cmd := exec.Command(s.path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting %s: %v", ErrUnavailable, s.path, err)
	}

	// The reader lives exactly as long as its process: readerDone lets
	// it exit even when unread stragglers have filled the channel.
	lines := make(chan string, 64)
	readerDone := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readerDone:
				return
			}
		}
	}()

	s.cmd = cmd
	s.stdin = stdin
	s.lines = lines
	s.readerDone = readerDone

	if err := s.handshake(); err != nil {
		s.kill()
		return err
	}

	s.logger.Debug("engine started", zap.String("path", s.path))
	return nil
}

func (s *Session) handshake() error {
	if err := s.send("uci"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.waitFor("uciok", s.handshakeTimeout); err != nil {
		return fmt.Errorf("%w: waiting for uciok: %v", ErrUnavailable, err)
	}
	for _, opt := range s.options {
		if err := s.send("setoption name " + opt[0] + " value " + opt[1]); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := s.send("isready"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.waitFor("readyok", s.handshakeTimeout); err != nil {
		return fmt.Errorf("%w: waiting for readyok: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Session) send(cmd string) error {
	_, err := io.WriteString(s.stdin, cmd+"\n")
	return err
}

// waitFor discards lines until one contains the token.
func (s *Session) waitFor(token string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return errors.New("engine closed its output")
			}
			if strings.Contains(line, token) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("no %q within %v", token, timeout)
		}
	}
}

// Evaluate requests a fixed-depth search of the position and blocks
// until the engine's terminal bestmove line, returning the evaluation
// from the last complete scored info line seen before it. Search
// reports improve monotonically with depth, so the last line is the
// best-informed one.
func (s *Session) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Evaluation{}, ErrClosed
	}

	p := newParser()

	// Re-sync before each search so a previous search's stragglers
	// cannot be mistaken for this one's results.
	if err := s.send("isready"); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := s.send("position fen " + fen); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := s.send(fmt.Sprintf("go depth %d", depth)); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	timer := time.NewTimer(s.moveTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Evaluation{}, ctx.Err()
		case <-timer.C:
			return Evaluation{}, fmt.Errorf("%w: no bestmove within %v", ErrTimeout, s.moveTimeout)
		case line, ok := <-s.lines:
			if !ok {
				return Evaluation{}, fmt.Errorf("%w: engine exited mid-search", ErrProtocol)
			}
			eval, done, err := p.feed(line)
			if err != nil {
				return Evaluation{}, err
			}
			if done {
				return eval, nil
			}
		}
	}
}

// Restart replaces a wedged engine process with a fresh one. Used by
// callers retrying a failed evaluation.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.logger.Warn("restarting engine", zap.String("path", s.path))
	s.kill()
	return s.start()
}

// Close requests graceful shutdown and kills the process if it does
// not exit within the grace period. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	if s.cmd == nil {
		return nil
	}

	_ = s.send("quit")
	_ = s.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	var err error
	select {
	case <-done:
	case <-time.After(s.graceTimeout):
		s.logger.Warn("engine did not quit, killing", zap.String("path", s.path))
		err = s.cmd.Process.Kill()
	}
	s.releaseReader()
	return err
}

// kill terminates the current process without the quit protocol.
func (s *Session) kill() {
	s.releaseReader()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
}

func (s *Session) releaseReader() {
	if s.readerDone != nil {
		close(s.readerDone)
		s.readerDone = nil
	}
}
