// Package humanizer rewrites a Fault (its message, kind and stack) into a
// short, bounded-length display sentence: an ordered pattern-rule table with a
// cleaning/truncation pipeline as a fallback for anything no rule matches.
package humanizer

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/narrator-dev/narrator/internal/domain"
)

// Humanizer holds an ordered rule table, registered at construction. The
// built-in set is the default; callers may register additional rules
// ahead of it with WithRules.
type Humanizer struct {
	rules           []Rule
	includeLocation bool
}

// Option configures a Humanizer.
type Option func(*Humanizer)

// WithoutLocation disables appending "in <file> at line <n>" when no rule
// matched and a stack trace is available. Location suffixing is on by
// default.
func WithoutLocation() Option {
	return func(h *Humanizer) {
		h.includeLocation = false
	}
}

// WithRules prepends extra rules ahead of the built-in table, preserving
// the "first match wins" contract across the combined table.
func WithRules(rules ...Rule) Option {
	return func(h *Humanizer) {
		h.rules = append(append([]Rule{}, rules...), h.rules...)
	}
}

// New creates a Humanizer with the default rule table.
func New(opts ...Option) *Humanizer {
	h := &Humanizer{
		rules:           defaultRules(),
		includeLocation: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// stackFrame matches the first "at file:line" style entry in a stack
// trace's top frame.
var stackFrame = regexp.MustCompile(`([^\s()]+?):(\d+)(?::\d+)?\)?\s*$`)

// Humanize rewrites fault into a short sentence, truncated to
// maxMessageLength code points. It never panics; a rule's Render function
// misbehaving (e.g. index out of range on unexpected submatch count) is
// recovered and reported as domain.ErrHumanizeFailed.
func (h *Humanizer) Humanize(fault domain.Fault, maxMessageLength int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrHumanizeFailed
		}
	}()

	source := fault.Message
	if source == "" {
		source = renderFault(fault)
	}

	for _, rule := range h.rules {
		if groups, ok := matchRule(rule, source, fault.Kind); ok {
			sentence := rule.Render(groups, fault)
			return truncate(sentence, maxMessageLength), nil
		}
	}

	if h.includeLocation && fault.Stack != "" {
		if file, line, ok := topFrame(fault.Stack); ok {
			cleaned := clean(source)
			located := fmt.Sprintf("%s in %s at line %s", cleaned, file, line)
			return truncate(located, maxMessageLength), nil
		}
	}

	return truncate(clean(source), maxMessageLength), nil
}

// matchRule reports whether rule applies to source/kind: the first rule
// whose matcher applies against the message, or whose bound kind equals
// the fault's kind, wins. A rule carrying both
// a regex and a bound kind (e.g. the ReferenceError "X is not defined"
// rule) requires both to hold, so it doesn't misfire for unrelated kinds
// that happen to share the same message shape.
func matchRule(rule Rule, source, kind string) ([]string, bool) {
	switch {
	case rule.Regex != nil && rule.Kind != "":
		if kind != rule.Kind {
			return nil, false
		}
		m := rule.Regex.FindStringSubmatch(source)
		if m == nil {
			return nil, false
		}
		return m, true
	case rule.Regex != nil:
		m := rule.Regex.FindStringSubmatch(source)
		if m == nil {
			return nil, false
		}
		return m, true
	case rule.Kind != "":
		if kind != rule.Kind {
			return nil, false
		}
		return nil, true
	default:
		return nil, false
	}
}

// Sanitize runs the cleaner and truncation steps on an arbitrary string,
// without rule matching. Used by the engine when Config.Humanize is false
// or as the fallbackToRaw path after a Humanize failure.
func Sanitize(s string, maxMessageLength int) string {
	return truncate(clean(s), maxMessageLength)
}

// renderFault produces a string rendering of a fault lacking a message.
func renderFault(fault domain.Fault) string {
	if fault.Kind != "" {
		return fault.Kind
	}
	if fault.Cause != nil {
		return fault.Cause.Error()
	}
	return "unknown error"
}

// topFrame extracts the basename filename and line number of the top
// stack frame.
func topFrame(stack string) (file, line string, ok bool) {
	lines := strings.Split(stack, "\n")
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		m := stackFrame.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		return path.Base(m[1]), m[2], true
	}
	return "", "", false
}

// bundlerPrefix strips scheme-style bundler path noise like
// "webpack:///./src/foo.js!" down to the bare path.
var bundlerPrefix = regexp.MustCompile(`^[a-zA-Z][\w+.-]*:///+[^!]*!`)
var dotSlash = regexp.MustCompile(`(^|[\s(])\./+`)
var nodeModulesPath = regexp.MustCompile(`[^\s]*node_modules[^\s]*`)
var punctuation = regexp.MustCompile(`[{}\[\]]|[^\w\s.,:;!?'"-]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// clean strips bundler-path noise, collapses punctuation, and trims.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = bundlerPrefix.ReplaceAllString(s, "")
	s = dotSlash.ReplaceAllString(s, "$1")
	s = nodeModulesPath.ReplaceAllString(s, "dependency")
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// truncate bounds s to maxLen code points, NFC-normalizing first so a base
// rune and combining mark with a precomposed form count as one code point
// and cannot be split; combining sequences without a precomposed form can
// still be cut between base and mark. If truncation occurs, "..." is
// appended within the budget.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = norm.NFC.String(s)

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	const ellipsis = "..."
	budget := maxLen - len([]rune(ellipsis))
	if budget < 0 {
		budget = 0
	}
	return string(runes[:budget]) + ellipsis
}
