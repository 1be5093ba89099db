// Package queue implements a strict FIFO, at-most-one-in-flight delivery
// queue: a single-consumer goroutine woken by a buffered notify channel, a
// mutex-guarded pending slice, and a "clear queue stops everything"
// Interrupt semantics. Utterances are short bounded sentences delivered in
// arrival order — no priority reordering, no chunking.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/logger"
	"github.com/narrator-dev/narrator/internal/metrics"
)

// settleDelay is the fixed pause between one delivery completing and the
// next one starting, so rapid-fire utterances don't blur together
// audibly.
const settleDelay = 100 * time.Millisecond

// Option configures a Queue.
type Option func(*Queue)

// WithQueueSize sets the internal notification channel capacity.
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		q.notify = make(chan struct{}, n)
	}
}

// WithSettleDelay overrides the default inter-delivery pause. Tests use
// this to shrink the delay to near-zero so cases run fast.
func WithSettleDelay(d time.Duration) Option {
	return func(q *Queue) {
		q.settle = d
	}
}

// Queue is the single-consumer FIFO dispatcher. Exactly one utterance is
// ever in flight against the Sink; ordering is never changed once an
// utterance is enqueued.
type Queue struct {
	sink domain.Sink
	log  *logger.Logger

	mu       sync.Mutex
	pending  []domain.Utterance
	notify   chan struct{}
	inFlight bool
	gen      uint64      // bumped by Clear to invalidate stale completions
	current  *completion // the in-flight delivery's completion signal, if any

	settle time.Duration
}

// completion is a close-once signal shared between a sink's completion
// callback and Clear, so a Clear that cancels an in-flight delivery whose
// onComplete never fires still unblocks the drain loop.
type completion struct {
	once sync.Once
	ch   chan struct{}
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

func (c *completion) signal() {
	c.once.Do(func() { close(c.ch) })
}

// New creates a Queue delivering to sink.
func New(sink domain.Sink, log *logger.Logger, opts ...Option) *Queue {
	q := &Queue{
		sink:   sink,
		log:    log,
		notify: make(chan struct{}, 32),
		settle: settleDelay,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends u to the tail of the pending queue. Non-blocking.
func (q *Queue) Enqueue(u domain.Utterance) {
	q.mu.Lock()
	q.pending = append(q.pending, u)
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PendingTexts returns the humanized text of every utterance currently
// waiting in the queue (not counting the in-flight one), for the Policy's
// queue-duplicate check.
func (q *Queue) PendingTexts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	texts := make([]string, len(q.pending))
	for i, u := range q.pending {
		texts[i] = u.Text
	}
	return texts
}

// Len returns the number of pending (not-yet-dispatched) utterances.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight reports whether a delivery is currently outstanding against the
// sink.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Clear drops every pending utterance, best-effort cancels any in-flight
// delivery and clears the in-flight flag. It does not stop the processing
// goroutine.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = q.pending[:0]
	q.gen++
	cur := q.current
	q.inFlight = false
	q.current = nil
	q.mu.Unlock()

	metrics.SetQueueDepth(0)
	q.sink.Cancel()
	if cur != nil {
		cur.signal()
	}
	q.log.Debug("queue: cleared, in-flight delivery cancelled")
}

// Start begins the single consumer goroutine. Non-blocking.
func (q *Queue) Start(ctx context.Context) {
	go q.processLoop(ctx)
	q.log.Info("queue started")
}

func (q *Queue) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.log.Info("queue stopped")
			return
		case <-q.notify:
			q.drain(ctx)
		}
	}
}

// drain dispatches pending utterances one at a time, in strict FIFO order,
// pausing settle between each, until the queue empties or ctx is done.
func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, gen, comp, ok := q.dequeue()
		if !ok {
			return
		}

		q.process(ctx, item, gen, comp)

		select {
		case <-comp.ch:
		case <-ctx.Done():
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.settle):
		}
	}
}

// dequeue pops the head of the pending slice, the only dequeue order the
// Queue ever uses — no reordering.
func (q *Queue) dequeue() (domain.Utterance, uint64, *completion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return domain.Utterance{}, 0, nil, false
	}

	item := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = true
	comp := newCompletion()
	q.current = comp
	metrics.SetQueueDepth(len(q.pending))
	return item, q.gen, comp, true
}

// process delivers one utterance; comp is signaled exactly once, either by
// the sink's completion callback or by a concurrent Clear. A completion
// that arrives for a generation that has since been cleared is ignored for
// bookkeeping purposes, so a late completion after Clear/Cancel never
// corrupts state.
func (q *Queue) process(ctx context.Context, item domain.Utterance, gen uint64, comp *completion) {
	start := time.Now()
	q.sink.Deliver(ctx, item, func(err error) {
		metrics.RecordDeliveryDuration(time.Since(start))

		q.mu.Lock()
		stale := gen != q.gen
		if !stale {
			q.inFlight = false
			q.current = nil
		}
		q.mu.Unlock()

		if !stale && err != nil {
			q.log.Warn("queue: delivery failed: %v", err)
		}
		comp.signal()
	})
}
