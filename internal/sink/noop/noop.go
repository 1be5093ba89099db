// Package noop provides a Sink that discards utterances, used when no
// voice backend is configured.
package noop

import (
	"context"

	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/logger"
)

var _ domain.Sink = (*Sink)(nil)

// Sink discards every utterance, logging it at debug level instead of
// speaking it.
type Sink struct {
	log *logger.Logger
}

// New creates a no-op sink.
func New(log *logger.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Deliver(_ context.Context, u domain.Utterance, onComplete func(error)) {
	s.log.Debug("noop sink: would say %q", u.Text)
	onComplete(nil)
}

func (s *Sink) Cancel() {}

func (s *Sink) ListVoices() []string { return nil }

func (s *Sink) Ready() bool { return true }
