// Package osvoice delivers utterances by shelling out to an OS-level
// text-to-speech command (espeak, spd-say, say): a goroutine-wrapped
// exec.CommandContext with a log-and-continue fallback when the binary is
// missing, wired up as a full domain.Sink with context-scoped cancellation.
package osvoice

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/logger"
)

var _ domain.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithCommand overrides the binary invoked (default "espeak") and its
// fixed leading arguments, e.g. WithCommand("spd-say", "-w").
func WithCommand(name string, args ...string) Option {
	return func(s *Sink) {
		s.command = name
		s.baseArgs = args
	}
}

// WithTimeout bounds how long a single delivery may run before being
// killed. Defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.timeout = d
	}
}

// Sink shells out to a command-line TTS program. Exactly one command runs
// at a time, matching the Queue's at-most-one-in-flight contract.
type Sink struct {
	command  string
	baseArgs []string
	timeout  time.Duration
	log      *logger.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// New creates an osvoice sink. The default command is "espeak".
func New(log *logger.Logger, opts ...Option) *Sink {
	s := &Sink{
		command: "espeak",
		timeout: 10 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver runs the configured command with the utterance text appended,
// and reports completion through onComplete. If the binary can't be
// found or started, the utterance is logged instead of failing the
// pipeline, matching the grounding example's fallback posture.
func (s *Sink) Deliver(ctx context.Context, u domain.Utterance, onComplete func(error)) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)

	args := append(append([]string{}, s.baseArgs...), u.Text)
	cmd := exec.CommandContext(ctx, s.command, args...)

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := cmd.Run()

		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Warn("osvoice: %s failed or unavailable, dropping to log: %v (text=%q)", s.command, err, u.Text)
		}
		onComplete(nil)
	}()
}

// Cancel kills the in-flight command, if any.
func (s *Sink) Cancel() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// ListVoices is unsupported for command-line backends; returns nil.
func (s *Sink) ListVoices() []string { return nil }

// Ready reports whether the configured command is resolvable on PATH.
func (s *Sink) Ready() bool {
	_, err := exec.LookPath(s.command)
	return err == nil
}
