package hooks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narrator-dev/narrator/internal/domain"
)

type fakeNarrator struct {
	mu     sync.Mutex
	faults []domain.Fault
}

func (f *fakeNarrator) HandleFault(fault domain.Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fault)
}

func (f *fakeNarrator) snapshot() []domain.Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Fault, len(f.faults))
	copy(out, f.faults)
	return out
}

func TestGo_RecoversPanicAsFault(t *testing.T) {
	n := &fakeNarrator{}
	ctx := context.Background()

	Go(ctx, n, func(ctx context.Context) {
		panic("boom")
	})

	require.Eventually(t, func() bool { return len(n.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Contains(t, n.snapshot()[0].Message, "boom")
	assert.Equal(t, domain.KindError, n.snapshot()[0].Kind)
}

func TestGo_NoPanicNeverCallsHandleFault(t *testing.T) {
	n := &fakeNarrator{}
	done := make(chan struct{})

	Go(context.Background(), n, func(ctx context.Context) {
		close(done)
	})

	<-done
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, n.snapshot())
}

func TestWatchErrors_ForwardsErrorsUntilContextDone(t *testing.T) {
	n := &fakeNarrator{}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error, 2)

	WatchErrors(ctx, n, ch)

	ch <- assertErr("first")
	ch <- assertErr("second")

	require.Eventually(t, func() bool { return len(n.snapshot()) == 2 }, time.Second, time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)
}

func TestWatchErrors_IgnoresNilErrors(t *testing.T) {
	n := &fakeNarrator{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan error, 1)

	WatchErrors(ctx, n, ch)
	ch <- nil

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, n.snapshot())
}

func TestRecoverMain_NarratesThenRepanics(t *testing.T) {
	n := &fakeNarrator{}

	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "RecoverMain must re-panic, never swallow the crash")
			assert.Equal(t, "original panic", r)
		}()
		defer RecoverMain(n)
		panic("original panic")
	}()

	require.Len(t, n.snapshot(), 1)
	assert.Contains(t, n.snapshot()[0].Message, "original panic")
}

func TestInstallRuntimeHooks_IdempotentAcrossRepeatedActivations(t *testing.T) {
	n1 := &fakeNarrator{}
	teardown1 := InstallRuntimeHooks(n1)
	defer teardown1()

	assert.Equal(t, Narrator(n1), Installed())

	n2 := &fakeNarrator{}
	teardown2 := InstallRuntimeHooks(n2)

	// Second activation replaces the installed target but the first
	// teardown must not uninstall it out from under the second caller.
	assert.Equal(t, Narrator(n2), Installed())
	teardown1()
	assert.Equal(t, Narrator(n2), Installed(), "refcounted: one teardown must not uninstall while another activation is live")

	teardown2()
	assert.Nil(t, Installed())
}

func assertErr(msg string) error {
	return &domain.Fault{Message: msg}
}
