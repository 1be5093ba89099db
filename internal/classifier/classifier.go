// Package classifier maps a raw Fault to a (kind, stableKey, severity)
// Classification. It is pure and depends only on its inputs: a fixed
// severity rule chain evaluated top to bottom, first match wins.
package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/narrator-dev/narrator/internal/domain"
)

// alwaysIgnorePatterns are case-insensitive substrings that cause an
// unconditional drop regardless of config. The Classifier flags faults
// matching these as SeverityWarning (so severity-aware consumers still see
// them go by) but Engine.HandleFault drops them before Humanizer ever runs.
var alwaysIgnorePatterns = []string{
	"resizeobserver loop limit exceeded",
	"non-error promise rejection captured with value",
	"loading chunk",
	"chunkloaderror",
}

// criticalKinds are kinds that are always critical severity regardless of
// message content.
var criticalKinds = map[string]bool{
	domain.KindReferenceError: true,
	domain.KindSyntaxError:    true,
}

// criticalSubstrings are case-insensitive message substrings that force
// critical severity.
var criticalSubstrings = []string{
	"module not found",
	"failed to fetch",
}

// Classifier classifies faults. It holds no mutable state — Classify is a
// pure function of (fault, maxMessageLength-independent humanized text).
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// IsAlwaysIgnored reports whether raw or humanized text matches one of the
// always-ignore patterns. Callers must check both the raw fault message and
// the final humanized text — the always-ignore closure applies to either.
func IsAlwaysIgnored(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range alwaysIgnorePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify produces a Classification for fault, given the already-computed
// humanized text (used only to derive StableKey; severity is computed from
// kind and raw message).
func (c *Classifier) Classify(fault domain.Fault, humanizedText string) domain.Classification {
	kind := fault.Kind
	if kind == "" {
		kind = domain.KindError
	}

	severity := c.severity(kind, fault.Message)

	return domain.Classification{
		Kind:      kind,
		StableKey: StableKey(humanizedText, kind),
		Severity:  severity,
	}
}

// severity assigns severity by the first matching rule:
//  1. critical if kind is ReferenceError/SyntaxError, or message mentions
//     "module not found" / "failed to fetch";
//  2. warning if message matches an always-ignore pattern;
//  3. normal otherwise.
func (c *Classifier) severity(kind, message string) domain.Severity {
	if criticalKinds[kind] {
		return domain.SeverityCritical
	}
	lower := strings.ToLower(message)
	for _, s := range criticalSubstrings {
		if strings.Contains(lower, s) {
			return domain.SeverityCritical
		}
	}
	if IsAlwaysIgnored(message) {
		return domain.SeverityWarning
	}
	return domain.SeverityNormal
}

// StableKey returns a deterministic identifier for a class of equivalent
// utterances, computed from the final humanized text plus kind — two
// faults that humanize to the same sentence intentionally share a stable
// key and therefore a cooldown.
func StableKey(humanizedText, kind string) string {
	h := sha256.Sum256([]byte(kind + ":" + humanizedText))
	return hex.EncodeToString(h[:])
}
