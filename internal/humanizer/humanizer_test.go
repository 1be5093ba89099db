package humanizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narrator-dev/narrator/internal/domain"
)

func TestHumanize_RequiredPatternSet(t *testing.T) {
	h := New()

	cases := []struct {
		name   string
		fault  domain.Fault
		expect string
	}{
		{"not-a-function", domain.Fault{Message: "map is not a function"},
			"map is not a function. Check if it's properly imported or defined."},
		{"cannot-read-property-of", domain.Fault{Message: "Cannot read property 'foo' of null"},
			"Cannot read property foo. The null might be null or undefined."},
		{"cannot-read-properties-reading", domain.Fault{Message: "Cannot read properties of undefined (reading 'bar')"},
			"Cannot read property bar of undefined. Check if the object exists."},
		{"json-unexpected-token-position", domain.Fault{Message: "Unexpected token } in JSON at position 12"},
			"JSON syntax error at position 12. Unexpected }."},
		{"unexpected-token", domain.Fault{Message: "Unexpected token ;"},
			"Syntax error: unexpected ;. Check for missing brackets, commas, or quotes."},
		{"module-not-found", domain.Fault{Message: "Module not found: Can't resolve './thing'"},
			"Module not found. Check your import path and make sure the package is installed."},
		{"failed-to-fetch", domain.Fault{Message: "Failed to fetch"},
			"Network error: Failed to fetch data. Check your internet connection or API endpoint."},
		{"react-object-child", domain.Fault{Message: "Objects are not valid as a React child"},
			"React error: Cannot render an object directly. Use JSON.stringify or render object properties individually."},
		{"invalid-hook-call", domain.Fault{Message: "Invalid hook call. Hooks can only be called..."},
			"React hook error: Hooks can only be called at the top level of function components."},
		{"const-reassign", domain.Fault{Message: "Assignment to constant variable."},
			"Cannot reassign a constant variable. Use let or var for variables that need to change."},
		{"reference-not-defined", domain.Fault{Message: "foo is not defined", Kind: domain.KindReferenceError},
			"Reference error: foo is not defined. Check spelling and scope."},
		{"type-error-catchall", domain.Fault{Message: "something odd", Kind: domain.KindTypeError},
			"Type error: Operation performed on wrong data type. Check your variable types."},
		{"range-error", domain.Fault{Message: "something odd", Kind: domain.KindRangeError},
			"Range error: Value is outside the allowed range."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.Humanize(tc.fault, 240)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestHumanize_ReferenceRuleRequiresMatchingKind(t *testing.T) {
	h := New()
	// "X is not defined" shaped message but wrong kind: must not hit the
	// reference-not-defined rule, since that rule requires both the regex
	// and Kind==ReferenceError.
	got, err := h.Humanize(domain.Fault{Message: "foo is not defined", Kind: domain.KindTypeError}, 240)
	require.NoError(t, err)
	assert.Equal(t, "Type error: Operation performed on wrong data type. Check your variable types.", got)
}

func TestHumanize_FallsBackToLocationWhenNoRuleMatches(t *testing.T) {
	h := New()
	stack := "Error: weird\n    at doThing (/app/src/widgets/foo.js:42:7)\n    at main (/app/index.js:1:1)"
	got, err := h.Humanize(domain.Fault{Message: "something truly novel happened", Stack: stack}, 240)
	require.NoError(t, err)
	assert.Contains(t, got, "in foo.js at line 42")
}

func TestHumanize_WithoutLocationSkipsStackSuffix(t *testing.T) {
	h := New(WithoutLocation())
	stack := "Error: weird\n    at doThing (/app/src/widgets/foo.js:42:7)"
	got, err := h.Humanize(domain.Fault{Message: "something truly novel happened", Stack: stack}, 240)
	require.NoError(t, err)
	assert.NotContains(t, got, "foo.js")
}

func TestHumanize_CleanerStripsBundlerPrefix(t *testing.T) {
	h := New()
	got, err := h.Humanize(domain.Fault{
		Message: "webpack:///./src/app.js!weird {thing} [here]",
	}, 240)
	require.NoError(t, err)
	assert.NotContains(t, got, "webpack")
	assert.NotContains(t, got, "{")
	assert.NotContains(t, got, "[")
}

func TestHumanize_CleanerReplacesNodeModulesPath(t *testing.T) {
	h := New()
	got, err := h.Humanize(domain.Fault{
		Message: "something odd at /app/node_modules/some-pkg/index.js",
	}, 240)
	require.NoError(t, err)
	assert.Contains(t, got, "dependency")
	assert.NotContains(t, got, "node_modules")
}

func TestHumanize_TruncatesToCodePointBudget(t *testing.T) {
	h := New()
	long := strings.Repeat("a ", 200)
	got, err := h.Humanize(domain.Fault{Message: long}, 20)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(got)), 20)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestHumanize_EmptyMessageRendersFromKindOrCause(t *testing.T) {
	h := New()
	got, err := h.Humanize(domain.Fault{Kind: domain.KindSyntaxError}, 240)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSanitize_CleanAndTruncate(t *testing.T) {
	got := Sanitize("some {messy} [raw] error\nwith a newline", 240)
	assert.NotContains(t, got, "{")
	assert.NotContains(t, got, "\n")
}

func TestWithRules_PrependedRuleWinsFirst(t *testing.T) {
	custom := Rule{
		Name: "custom-override",
		Render: func(_ []string, _ domain.Fault) string {
			return "custom handled"
		},
		Kind: domain.KindTypeError,
	}
	h := New(WithRules(custom))
	got, err := h.Humanize(domain.Fault{Message: "whatever", Kind: domain.KindTypeError}, 240)
	require.NoError(t, err)
	assert.Equal(t, "custom handled", got)
}
