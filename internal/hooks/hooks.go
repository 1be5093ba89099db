// Package hooks provides best-effort process-wide fault-source
// installation for a narrator's autoSetup option: goroutine panic recovery,
// error-channel forwarding, a main()-level recover, and a fatal-crash
// reporter, all routed through a single installed Narrator.
package hooks

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/narrator-dev/narrator/internal/domain"
)

// Narrator is the subset of the engine facade hooks depends on, kept as a
// small interface so this package never imports internal/engine directly
// and there's no import cycle.
type Narrator interface {
	HandleFault(fault domain.Fault)
}

// installMu guards the process-wide hook target installed by
// InstallRuntimeHooks. Go has no global "window.onerror" registry, so this
// is the closest analog: a single slot that RecoverMain/Go/WatchErrors
// callers without a direct engine reference can still reach.
var (
	installMu    sync.Mutex
	installed    Narrator
	installCount int
	crashReaderW *os.File
)

// InstallRuntimeHooks installs n as the process-wide fault target and
// starts a best-effort crash reporter, returning a teardown function.
// Idempotent across repeated autoSetup activations: calling it again while
// already installed makes n the installed target and bumps a reference
// count (the crash reporter keeps the narrator it was started with), and
// the returned teardown only actually uninstalls once the count drops to
// zero. Install
// failures (e.g. the crash reporter is unsupported on this platform) are
// non-fatal — the process-wide narrator slot is still set.
func InstallRuntimeHooks(n Narrator) (teardown func()) {
	installMu.Lock()
	defer installMu.Unlock()

	installed = n
	installCount++
	if installCount == 1 {
		installCrashReporter(n)
	}

	return func() {
		installMu.Lock()
		defer installMu.Unlock()
		installCount--
		if installCount <= 0 {
			installCount = 0
			installed = nil
			uninstallCrashReporter()
		}
	}
}

// Installed returns the process-wide Narrator installed via
// InstallRuntimeHooks, or nil if none is installed.
func Installed() Narrator {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}

// installCrashReporter wires runtime/debug.SetCrashOutput to a pipe whose
// read side narrates the first chunk of a fatal runtime crash report
// before the process dies — the OS-process analog of an "uncaught
// exception" hook. Go offers no way to resume after a fatal runtime
// error, so this narrates the crash, it never prevents it. Best-effort:
// any failure (unsupported platform, pipe exhaustion) is swallowed and
// never propagates to the installer.
func installCrashReporter(n Narrator) {
	defer func() { recover() }()

	r, w, err := os.Pipe()
	if err != nil {
		return
	}
	if err := debug.SetCrashOutput(w, debug.CrashOptions{}); err != nil {
		r.Close()
		w.Close()
		return
	}
	crashReaderW = w

	go func() {
		buf := make([]byte, 4096)
		nr, _ := r.Read(buf)
		if nr > 0 {
			n.HandleFault(domain.Fault{
				Message: fmt.Sprintf("fatal runtime crash: %s", firstLine(buf[:nr])),
				Kind:    domain.KindError,
				Stack:   string(buf[:nr]),
			})
		}
	}()
}

// uninstallCrashReporter restores the default crash output (os.Stderr) and
// closes the reporter's pipe.
func uninstallCrashReporter() {
	defer func() { recover() }()
	debug.SetCrashOutput(os.Stderr, debug.CrashOptions{})
	if crashReaderW != nil {
		crashReaderW.Close()
		crashReaderW = nil
	}
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}

// Go launches fn in a new goroutine. A panic inside fn is recovered,
// converted into a domain.Fault, and routed through n.HandleFault instead
// of crashing the process — the Go analog of a synchronous "throw" hook,
// since Go has no catchable synchronous exceptions outside of panics.
func Go(ctx context.Context, n Narrator, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				n.HandleFault(domain.Fault{
					Message: fmt.Sprintf("panic: %v", r),
					Kind:    domain.KindError,
					Stack:   string(debug.Stack()),
				})
			}
		}()
		fn(ctx)
	}()
}

// WatchErrors forwards the first error received on ch to n.HandleFault,
// then keeps forwarding subsequent ones until ctx is done — the analog of
// an "unhandled rejection" hook for a worker pool's error channel.
func WatchErrors(ctx context.Context, n Narrator, ch <-chan error) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-ch:
				if !ok {
					return
				}
				if err == nil {
					continue
				}
				n.HandleFault(domain.Fault{
					Message: err.Error(),
					Kind:    domain.KindError,
					Cause:   err,
				})
			}
		}
	}()
}

// RecoverMain narrates a panic unwinding through main(), then re-panics so
// the process still crashes — it must never swallow the crash, only
// narrate it first. Install with `defer hooks.RecoverMain(e)` at the top
// of main().
func RecoverMain(n Narrator) {
	if r := recover(); r != nil {
		n.HandleFault(domain.Fault{
			Message: fmt.Sprintf("panic: %v", r),
			Kind:    domain.KindError,
			Stack:   string(debug.Stack()),
		})
		panic(r)
	}
}
