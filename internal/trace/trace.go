// Package trace provides an ANSI-colored diagnostic writer used when
// Config.Debug is enabled: bold-cyan for normal trace lines, bold-red for
// drop events, written straight to the configured writer with no buffering.
package trace

import (
	"fmt"
	"sync"

	"github.com/narrator-dev/narrator/internal/domain"
)

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	cyan  = "\033[36m"
)

var _ domain.TraceSink = (*Writer)(nil)

// PrintFunc prints formatted output; matches fmt.Printf's signature.
type PrintFunc func(format string, a ...interface{})

// Writer writes debug traces to stdout (or any PrintFunc) with ANSI
// formatting, separating it visually from normal leveled log output.
type Writer struct {
	mu      sync.Mutex
	printFn PrintFunc
}

// New creates a Writer. If printFn is nil, fmt.Printf is used.
func New(printFn PrintFunc) *Writer {
	if printFn == nil {
		printFn = func(format string, a ...interface{}) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &Writer{printFn: printFn}
}

// Trace writes a single diagnostic line in bold cyan.
func (w *Writer) Trace(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.printFn("%s%s[narrator] %s%s", cyan, bold, fmt.Sprintf(format, args...), reset)
}

// TraceDropped writes a dropped-fault trace line in bold red, for visual
// distinction from routine admit/deliver traces.
func (w *Writer) TraceDropped(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.printFn("%s%s[narrator:dropped] %s%s", red, bold, fmt.Sprintf(format, args...), reset)
}
