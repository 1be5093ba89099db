// Package engine implements the facade that orchestrates the
// classifier/humanizer/policy/queue pipeline: a struct built from
// interfaces and options, exposing a small set of public operations and
// depending on no concrete I/O beyond what's injected.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/narrator-dev/narrator/internal/classifier"
	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/hooks"
	"github.com/narrator-dev/narrator/internal/humanizer"
	"github.com/narrator-dev/narrator/internal/logger"
	"github.com/narrator-dev/narrator/internal/metrics"
	"github.com/narrator-dev/narrator/internal/policy"
	"github.com/narrator-dev/narrator/internal/queue"
)

// Option configures an Engine at construction.
type Option func(*Engine)

// WithTrace attaches a diagnostic trace sink, used only when
// Config.Debug is true.
func WithTrace(t domain.TraceSink) Option {
	return func(e *Engine) {
		e.trace = t
	}
}

// WithClassifier overrides the default Classifier.
func WithClassifier(c *classifier.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithHumanizer overrides the default Humanizer.
func WithHumanizer(h *humanizer.Humanizer) Option {
	return func(e *Engine) {
		e.humanizer = h
	}
}

// WithClock overrides the time source used by the policy ledger. Tests use
// this to drive deterministic cooldown arithmetic.
func WithClock(clock policy.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithQueueOptions forwards options to the underlying queue.Queue.
func WithQueueOptions(opts ...queue.Option) Option {
	return func(e *Engine) {
		e.queueOpts = append(e.queueOpts, opts...)
	}
}

// Status is the snapshot returned by GetStatus.
type Status struct {
	Enabled   bool
	SinkReady bool
	InFlight  bool
	Pending   int
	Config    domain.Config
}

// Engine is the public facade: Construct, HandleFault, Speak, Test,
// Enable/Disable, ClearQueue, UpdateConfig, GetStatus.
type Engine struct {
	classifier *classifier.Classifier
	humanizer  *humanizer.Humanizer
	policy     *policy.Policy
	ledger     *policy.Ledger
	queue      *queue.Queue
	sink       domain.Sink
	log        *logger.Logger
	trace      domain.TraceSink

	clock policy.Clock

	queueOpts []queue.Option

	cfg atomic.Pointer[domain.Config]

	ctx    context.Context
	cancel context.CancelFunc

	// sessionID correlates this engine instance's debug traces and log
	// lines across a process's lifetime; it never participates in a
	// Classification's StableKey.
	sessionID string

	hooksTeardown func()
}

// Construct initializes sink, ledger, and queue from cfg. Construction
// never fails for bad config — unknown or zero-valued options simply take
// their natural default behavior. The queue's processing goroutine is
// started immediately; HandleFault/Speak/Test are safe to call right away.
// If cfg.AutoSetup is true, Construct installs the process-wide runtime
// hooks from internal/hooks; Shutdown uninstalls them. Hook installation
// is best-effort and never fails construction.
func Construct(cfg domain.Config, sink domain.Sink, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		classifier: classifier.New(),
		humanizer:  humanizer.New(),
		sink:       sink,
		log:        log,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ledger = policy.NewLedger(e.clock, 10)
	e.policy = policy.New(e.ledger, e.clock)
	e.queue = queue.New(sink, log, e.queueOpts...)
	e.sessionID = "sess_" + uuid.New().String()[:16]

	e.cfg.Store(&cfg)

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.queue.Start(e.ctx)

	if cfg.AutoSetup {
		if teardown := e.installHooksBestEffort(); teardown != nil {
			e.hooksTeardown = teardown
		}
	}

	log.Info("engine constructed (session=%s, enabled=%v, voice=%q)", e.sessionID, cfg.Enabled, cfg.Voice)
	return e
}

// installHooksBestEffort installs the process-wide runtime hooks that
// Config.AutoSetup asks for. Failure is logged at warn and is never fatal
// to construction.
func (e *Engine) installHooksBestEffort() (teardown func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("engine: hook installation failed: %v", r)
			teardown = nil
		}
	}()
	teardown = hooks.InstallRuntimeHooks(e)
	e.log.Debug("engine: runtime hooks installed (session=%s)", e.sessionID)
	return teardown
}

// SessionID returns the correlation identifier generated at construction,
// used only in debug traces and log lines — never in a Classification's
// StableKey.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Shutdown stops the queue's processing goroutine and, if autoSetup
// installed process-wide hooks, uninstalls them. The Engine must not be
// used afterward.
func (e *Engine) Shutdown() {
	if e.hooksTeardown != nil {
		e.hooksTeardown()
	}
	e.cancel()
}

// config returns the current config snapshot. Always non-nil after
// Construct.
func (e *Engine) config() domain.Config {
	return *e.cfg.Load()
}

// HandleFault classifies, humanizes, applies Policy, and enqueues fault on
// admit. Returns synchronously; never panics or propagates an error to the
// caller.
func (e *Engine) HandleFault(fault domain.Fault) {
	cfg := e.config()
	if !cfg.Enabled {
		return
	}

	if classifier.IsAlwaysIgnored(fault.Message) {
		e.traceDrop(policy.ReasonIgnored, fault.Message)
		metrics.RecordDropped("always_ignored")
		return
	}

	text, classification := e.render(fault, cfg)
	if text == "" {
		return // humanization failed and fallbackToRaw is false
	}

	if classifier.IsAlwaysIgnored(text) {
		e.traceDrop(policy.ReasonIgnored, text)
		metrics.RecordDropped("always_ignored")
		return
	}

	e.admitAndEnqueue(text, classification, cfg)
}

// render produces the final display text and classification for fault,
// honoring Humanize/FallbackToRaw: if humanization fails and FallbackToRaw
// is false, the fault is dropped silently (empty return text means the
// fault must be dropped); otherwise the sanitized raw message is used.
func (e *Engine) render(fault domain.Fault, cfg domain.Config) (string, domain.Classification) {
	var text string

	if cfg.Humanize {
		humanized, err := e.humanizer.Humanize(fault, cfg.MaxMessageLength)
		if err != nil {
			e.traceDrop(policy.ReasonNone, "humanization failed: "+err.Error())
			if !cfg.FallbackToRaw {
				return "", domain.Classification{}
			}
			text = humanizer.Sanitize(rawMessage(fault), cfg.MaxMessageLength)
		} else {
			text = humanized
		}
	} else {
		text = humanizer.Sanitize(rawMessage(fault), cfg.MaxMessageLength)
	}

	classification := e.classifier.Classify(fault, text)
	return text, classification
}

func rawMessage(fault domain.Fault) string {
	if fault.Message != "" {
		return fault.Message
	}
	if fault.Kind != "" {
		return fault.Kind
	}
	if fault.Cause != nil {
		return fault.Cause.Error()
	}
	return "unknown error"
}

// Speak treats text as a pre-humanized utterance, bypassing Classifier and
// Humanizer entirely, but still subject to Policy.
func (e *Engine) Speak(text string) {
	cfg := e.config()
	if !cfg.Enabled {
		return
	}
	classification := domain.Classification{
		Kind:      domain.KindError,
		StableKey: classifier.StableKey(text, domain.KindError),
		Severity:  domain.SeverityNormal,
	}
	e.admitAndEnqueue(text, classification, cfg)
}

// defaultTestMessage is spoken by Test when called with an empty string.
const defaultTestMessage = "This is a test of the narrator voice."

// Test is like Speak but supplies a default message, for smoke-testing
// the sink.
func (e *Engine) Test(text string) {
	if text == "" {
		text = defaultTestMessage
	}
	e.Speak(text)
}

// admitAndEnqueue runs text+classification through Policy and, on admit,
// enqueues it — unless the sink isn't ready, in which case the admission
// is still recorded (so the cooldown keeps ticking and the sink coming
// back doesn't trigger a burst) but nothing is queued.
func (e *Engine) admitAndEnqueue(text string, classification domain.Classification, cfg domain.Config) {
	u := domain.Utterance{
		Text:           text,
		Classification: classification,
		AdmittedAt:     time.Now(),
		VoiceHint:      cfg.Voice,
		Prosody:        cfg.Prosody(),
	}

	pendingTexts := e.queue.PendingTexts()
	ok, reason := e.policy.Admit(u, pendingTexts, cfg)
	if !ok {
		e.traceDrop(reason, text)
		metrics.RecordDropped(string(reason))
		return
	}

	e.policy.Record(classification.StableKey)
	metrics.RecordAdmitted()

	if !e.sink.Ready() {
		e.log.Warn("%v, dropping after admission: %q", domain.ErrNotReady, text)
		return
	}

	e.queue.Enqueue(u)
}

// Enable atomically sets Config.Enabled to true. Idempotent.
func (e *Engine) Enable() {
	enabled := true
	e.UpdateConfig(domain.ConfigPatch{Enabled: &enabled})
}

// Disable atomically sets Config.Enabled to false and clears the queue.
// Idempotent; always empties the queue.
func (e *Engine) Disable() {
	enabled := false
	e.UpdateConfig(domain.ConfigPatch{Enabled: &enabled})
	e.queue.Clear()
}

// ClearQueue cancels any in-flight delivery and drops all pending
// utterances. The ledger is left intact.
func (e *Engine) ClearQueue() {
	e.queue.Clear()
}

// UpdateConfig deep-merges patch into the current config and replaces it
// atomically. Never retroactively re-evaluates in-flight or pending
// utterances. Unknown keys (fields the patch doesn't set) are left
// untouched.
func (e *Engine) UpdateConfig(patch domain.ConfigPatch) {
	cfg := e.config()
	next := cfg.Merge(patch)
	e.cfg.Store(&next)
}

// GetStatus returns a snapshot of the engine's current state.
func (e *Engine) GetStatus() Status {
	cfg := e.config()
	return Status{
		Enabled:   cfg.Enabled,
		SinkReady: e.sink.Ready(),
		InFlight:  e.queue.InFlight(),
		Pending:   e.queue.Len(),
		Config:    cfg,
	}
}

// traceDrop emits a diagnostic trace when Config.Debug is on. A no-op
// otherwise, or when no trace sink was configured.
func (e *Engine) traceDrop(reason policy.Reason, text string) {
	cfg := e.config()
	if !cfg.Debug || e.trace == nil {
		return
	}
	if reason == policy.ReasonNone {
		e.trace.TraceDropped("dropped: %s", text)
		return
	}
	e.trace.TraceDropped("dropped (%s): %s", reason, text)
}
