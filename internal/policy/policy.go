package policy

import (
	"strings"
	"time"

	"github.com/narrator-dev/narrator/internal/domain"
)

// Policy decides admit/drop for a candidate utterance against a Ledger and
// a Config snapshot. It holds no state of its own beyond the Ledger it was
// constructed with — config is passed in fresh on every call since the
// engine may swap it out between faults via UpdateConfig.
type Policy struct {
	ledger *Ledger
	clock  Clock
}

// New creates a Policy backed by ledger. clock defaults to the ledger's own
// clock when nil.
func New(ledger *Ledger, clock Clock) *Policy {
	if clock == nil {
		clock = ledger.Now
	}
	return &Policy{ledger: ledger, clock: clock}
}

// Reason identifies why a candidate utterance was dropped, for metrics and
// debug traces. The zero value ReasonNone means admitted.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonDisabled       Reason = "disabled"
	ReasonQueueDuplicate Reason = "queue_duplicate"
	ReasonGlobalCooldown Reason = "global_cooldown"
	ReasonKeyCooldown    Reason = "key_cooldown"
	ReasonIgnored        Reason = "ignored"
	ReasonKindFiltered   Reason = "kind_filtered"
	ReasonNotAllowlisted Reason = "not_allowlisted"
)

// maxEscalation caps the escalation multiplier applied to a repeating key's
// cooldown: beyond this many consecutive admits the wait no longer grows.
const maxEscalation = 5

// Admit runs a candidate utterance through, in order: enabled check,
// in-queue text dedup, global cooldown, per-key escalating cooldown, the
// configured ignore patterns, kind filters, and an allowlist check. It
// returns ReasonNone and true when admission should proceed, in which case
// the caller is responsible for calling Record to commit the admission —
// Admit never mutates the ledger itself, so repeated calls with the same
// state are side-effect free.
func (p *Policy) Admit(u domain.Utterance, pendingTexts []string, cfg domain.Config) (bool, Reason) {
	if !cfg.Enabled {
		return false, ReasonDisabled
	}

	for _, t := range pendingTexts {
		if t == u.Text {
			return false, ReasonQueueDuplicate
		}
	}

	now := p.clock()
	cooldown := cfg.Cooldown()

	if last, ok := p.ledger.GlobalLastAdmittedAt(); ok {
		if now.Sub(last) < cooldown {
			return false, ReasonGlobalCooldown
		}
	}

	key := u.Classification.StableKey
	lastAdmittedAt, admitCount := p.ledger.Snapshot(key)
	if !lastAdmittedAt.IsZero() {
		escalation := admitCount
		if escalation > maxEscalation {
			escalation = maxEscalation
		}
		keyCooldown := cooldown * time.Duration(escalation)
		if now.Sub(lastAdmittedAt) < keyCooldown {
			return false, ReasonKeyCooldown
		}
	}

	if matchesAny(u.Text, cfg.Filters.IgnorePatterns) {
		return false, ReasonIgnored
	}

	if len(cfg.Filters.ErrorKinds) > 0 && !containsKind(cfg.Filters.ErrorKinds, u.Classification.Kind) {
		return false, ReasonKindFiltered
	}

	if len(cfg.Filters.OnlyPatterns) > 0 && !matchesAny(u.Text, cfg.Filters.OnlyPatterns) {
		return false, ReasonNotAllowlisted
	}

	return true, ReasonNone
}

// Record commits an admission to the ledger. Must be called exactly once
// per admitted utterance, whether or not it is then enqueued (the engine
// records admissions even while the sink is not ready).
func (p *Policy) Record(key string) {
	p.ledger.Record(key, p.clock())
}

func matchesAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, pat := range patterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
