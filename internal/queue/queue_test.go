package queue

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/logger"
)

// fakeSink records delivered utterances in arrival order and completes them
// either immediately or on demand, depending on the test.
type fakeSink struct {
	mu        sync.Mutex
	delivered []string
	hold      bool
	pending   []func(error)
	cancelled int
}

func (s *fakeSink) Deliver(_ context.Context, u domain.Utterance, onComplete func(error)) {
	s.mu.Lock()
	s.delivered = append(s.delivered, u.Text)
	if s.hold {
		s.pending = append(s.pending, onComplete)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	onComplete(nil)
}

func (s *fakeSink) Cancel() {
	s.mu.Lock()
	s.cancelled++
	s.mu.Unlock()
}

func (s *fakeSink) ListVoices() []string { return nil }
func (s *fakeSink) Ready() bool          { return true }

func (s *fakeSink) releaseOne() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	fn := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()
	fn(nil)
}

func (s *fakeSink) deliveredSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func utterance(text string) domain.Utterance {
	return domain.Utterance{Text: text}
}

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

func TestQueue_DeliversInFIFOOrder(t *testing.T) {
	sink := &fakeSink{}
	q := New(sink, testLogger(), WithSettleDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(utterance("first"))
	q.Enqueue(utterance("second"))
	q.Enqueue(utterance("third"))

	require.Eventually(t, func() bool {
		return len(sink.deliveredSnapshot()) == 3
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"first", "second", "third"}, sink.deliveredSnapshot())
}

func TestQueue_AtMostOneInFlight(t *testing.T) {
	sink := &fakeSink{hold: true}
	q := New(sink, testLogger(), WithSettleDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(utterance("a"))
	q.Enqueue(utterance("b"))

	require.Eventually(t, func() bool {
		return len(sink.deliveredSnapshot()) == 1
	}, time.Second, time.Millisecond, "second item must not be delivered while first is in flight")

	assert.True(t, q.InFlight())
	sink.releaseOne()

	require.Eventually(t, func() bool {
		return len(sink.deliveredSnapshot()) == 2
	}, time.Second, time.Millisecond)
	sink.releaseOne()
}

func TestQueue_ClearDropsPendingAndUnblocksInFlight(t *testing.T) {
	sink := &fakeSink{hold: true}
	q := New(sink, testLogger(), WithSettleDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(utterance("a"))
	q.Enqueue(utterance("b"))

	require.Eventually(t, func() bool {
		return len(sink.deliveredSnapshot()) == 1
	}, time.Second, time.Millisecond)

	q.Clear()

	assert.Equal(t, 0, q.Len())
	require.Eventually(t, func() bool {
		return !q.InFlight()
	}, time.Second, time.Millisecond)

	// The cleared in-flight delivery's onComplete arrives only now, after
	// Clear; this late call must be harmless.
	sink.releaseOne()
}

func TestQueue_PendingTextsExcludesInFlight(t *testing.T) {
	sink := &fakeSink{hold: true}
	q := New(sink, testLogger(), WithSettleDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(utterance("a"))
	require.Eventually(t, func() bool {
		return len(sink.deliveredSnapshot()) == 1
	}, time.Second, time.Millisecond)

	q.Enqueue(utterance("b"))
	assert.Equal(t, []string{"b"}, q.PendingTexts())

	sink.releaseOne()
}
