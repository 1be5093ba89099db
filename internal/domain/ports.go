package domain

import "context"

// Sink accepts one utterance at a time and reports completion
// asynchronously. Implementations must invoke onComplete exactly once per
// Deliver call, even if Cancel is called mid-flight. The Queue does not
// wait for a cancelled delivery's completion and treats it, whenever it
// arrives, as a no-op.
type Sink interface {
	// Deliver hands one utterance to the backend. onComplete must be
	// invoked exactly once, with a non-nil error on failure.
	Deliver(ctx context.Context, u Utterance, onComplete func(error))
	// Cancel best-effort aborts any in-flight utterance.
	Cancel()
	// ListVoices enumerates available voice identifiers.
	ListVoices() []string
	// Ready reports whether the backend is currently able to accept work.
	Ready() bool
}

// TraceSink receives diagnostic traces when Config.Debug is enabled. It is
// a pure side channel — never part of the admission or delivery path.
type TraceSink interface {
	Trace(format string, args ...any)
	// TraceDropped traces a dropped candidate utterance, distinct from
	// Trace so implementations can call out drops visually.
	TraceDropped(format string, args ...any)
}
