package humanizer

import (
	"fmt"
	"regexp"

	"github.com/narrator-dev/narrator/internal/domain"
)

// Rule is one entry in the Humanizer's open rule table — an ordered
// (matcher, renderer) pair that callers can extend via WithRules.
type Rule struct {
	// Name documents the rule for debug traces; not used for matching.
	Name string
	// Regex is matched against the message source. If nil, Kind is used
	// instead (a kind-only catch-all rule).
	Regex *regexp.Regexp
	// Kind, when non-empty, requires the fault's kind to equal this value:
	// on its own when Regex is nil, and in addition to a Regex match when
	// both are set.
	Kind string
	// Render builds the sentence from the regex submatches (nil submatches
	// for kind-only rules) and the fault.
	Render func(groups []string, fault domain.Fault) string
}

// defaultRules is the built-in pattern set, evaluated in registration
// order; the first rule whose matcher applies wins.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:  "not-a-function",
			Regex: regexp.MustCompile(`(?i)^(.+?) is not a function`),
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("%s is not a function. Check if it's properly imported or defined.", g[1])
			},
		},
		{
			Name:  "cannot-read-property-of",
			Regex: regexp.MustCompile(`(?i)Cannot read propert(?:y|ies) '?([\w$]+)'? of (\w+)`),
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("Cannot read property %s. The %s might be null or undefined.", g[1], g[2])
			},
		},
		{
			Name:  "cannot-read-properties-reading",
			Regex: regexp.MustCompile(`(?i)Cannot read properties of (\w+) \(reading '([\w$]+)'\)`),
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("Cannot read property %s of %s. Check if the object exists.", g[2], g[1])
			},
		},
		{
			Name:  "json-unexpected-token-position",
			Regex: regexp.MustCompile(`(?i)Unexpected token (.+?) in JSON at position (\d+)`),
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("JSON syntax error at position %s. Unexpected %s.", g[2], g[1])
			},
		},
		{
			Name:  "unexpected-token",
			Regex: regexp.MustCompile(`(?i)Unexpected token (.+?)(?:\s|$)`),
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("Syntax error: unexpected %s. Check for missing brackets, commas, or quotes.", g[1])
			},
		},
		{
			Name:  "module-not-found",
			Regex: regexp.MustCompile(`(?i)Module not found`),
			Render: func(_ []string, _ domain.Fault) string {
				return "Module not found. Check your import path and make sure the package is installed."
			},
		},
		{
			Name:  "failed-to-fetch",
			Regex: regexp.MustCompile(`(?i)Failed to fetch`),
			Render: func(_ []string, _ domain.Fault) string {
				return "Network error: Failed to fetch data. Check your internet connection or API endpoint."
			},
		},
		{
			Name:  "react-object-child",
			Regex: regexp.MustCompile(`(?i)Objects are not valid as a React child`),
			Render: func(_ []string, _ domain.Fault) string {
				return "React error: Cannot render an object directly. Use JSON.stringify or render object properties individually."
			},
		},
		{
			Name:  "invalid-hook-call",
			Regex: regexp.MustCompile(`(?i)Invalid hook call`),
			Render: func(_ []string, _ domain.Fault) string {
				return "React hook error: Hooks can only be called at the top level of function components."
			},
		},
		{
			Name:  "const-reassign",
			Regex: regexp.MustCompile(`(?i)Assignment to constant variable`),
			Render: func(_ []string, _ domain.Fault) string {
				return "Cannot reassign a constant variable. Use let or var for variables that need to change."
			},
		},
		{
			Name:  "reference-not-defined",
			Regex: regexp.MustCompile(`(?i)^(.+?) is not defined`),
			Kind:  domain.KindReferenceError,
			Render: func(g []string, _ domain.Fault) string {
				return fmt.Sprintf("Reference error: %s is not defined. Check spelling and scope.", g[1])
			},
		},
		{
			Name: "type-error-catchall",
			Kind: domain.KindTypeError,
			Render: func(_ []string, _ domain.Fault) string {
				return "Type error: Operation performed on wrong data type. Check your variable types."
			},
		},
		{
			Name: "range-error",
			Kind: domain.KindRangeError,
			Render: func(_ []string, _ domain.Fault) string {
				return "Range error: Value is outside the allowed range."
			},
		},
	}
}
