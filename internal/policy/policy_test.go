package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narrator-dev/narrator/internal/domain"
)

// fakeClock is a manually advanced clock, used to inject a controllable
// time source instead of sleeping real wall-clock time in tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestPolicy() (*Policy, *fakeClock) {
	fc := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ledger := NewLedger(fc.Now, 0)
	return New(ledger, fc.Now), fc
}

func testConfig(cooldownMs int64) domain.Config {
	cfg := domain.NewDefaultConfig()
	cfg.CooldownMs = cooldownMs
	return cfg
}

func utteranceFor(key, text string) domain.Utterance {
	return domain.Utterance{
		Text: text,
		Classification: domain.Classification{
			Kind:      domain.KindTypeError,
			StableKey: key,
			Severity:  domain.SeverityNormal,
		},
	}
}

func TestPolicy_DisabledDropsEverything(t *testing.T) {
	p, _ := newTestPolicy()
	cfg := testConfig(5000)
	cfg.Enabled = false

	ok, reason := p.Admit(utteranceFor("k1", "boom"), nil, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonDisabled, reason)
}

func TestPolicy_QueueDuplicateDropped(t *testing.T) {
	p, _ := newTestPolicy()
	cfg := testConfig(5000)

	ok, reason := p.Admit(utteranceFor("k1", "boom"), []string{"boom"}, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonQueueDuplicate, reason)
}

func TestPolicy_GlobalCooldown(t *testing.T) {
	p, fc := newTestPolicy()
	cfg := testConfig(5000)

	ok, reason := p.Admit(utteranceFor("k1", "first"), nil, cfg)
	require.True(t, ok)
	require.Equal(t, ReasonNone, reason)
	p.Record("k1")

	fc.Advance(1 * time.Second)
	ok, reason = p.Admit(utteranceFor("k2", "second"), nil, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonGlobalCooldown, reason)

	fc.Advance(5 * time.Second)
	ok, reason = p.Admit(utteranceFor("k2", "second"), nil, cfg)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

// TestPolicy_EscalatingKeyCooldown walks an escalating sequence:
// cooldownMs=5000, admits at t=0, then candidate re-admits attempted at
// t=5100, t=15200, t=30300, t=45400, each gated by
// cooldownMs * min(admitCount, 5) using the admit count as of the prior
// admission (not including the attempt being evaluated).
func TestPolicy_EscalatingKeyCooldown(t *testing.T) {
	p, fc := newTestPolicy()
	cfg := testConfig(5000)
	key := "repeat-key"

	ok, reason := p.Admit(utteranceFor(key, "boom"), nil, cfg)
	require.True(t, ok)
	require.Equal(t, ReasonNone, reason)
	p.Record(key) // admitCount now 1, next gate = min(1,5) = 1 -> 5s

	fc.Advance(5100 * time.Millisecond)
	ok, reason = p.Admit(utteranceFor(key, "boom"), nil, cfg)
	require.True(t, ok, "5.1s >= 5s escalated cooldown")
	require.Equal(t, ReasonNone, reason)
	p.Record(key) // admitCount now 2, next gate = min(2,5) = 2 -> 10s

	fc.Advance(10100 * time.Millisecond)
	ok, reason = p.Admit(utteranceFor(key, "boom"), nil, cfg)
	require.True(t, ok, "10.1s >= 10s escalated cooldown")
	require.Equal(t, ReasonNone, reason)
	p.Record(key) // admitCount now 3, next gate = min(3,5) = 3 -> 15s

	fc.Advance(15100 * time.Millisecond)
	ok, reason = p.Admit(utteranceFor(key, "boom"), nil, cfg)
	require.True(t, ok, "15.1s >= 15s escalated cooldown")
	require.Equal(t, ReasonNone, reason)
	p.Record(key) // admitCount now 4, next gate = min(4,5) = 4 -> 20s

	fc.Advance(15100 * time.Millisecond)
	ok, reason = p.Admit(utteranceFor(key, "boom"), nil, cfg)
	assert.False(t, ok, "15.1s < 20s escalated cooldown")
	assert.Equal(t, ReasonKeyCooldown, reason)
}

func TestPolicy_EscalationSaturatesAtMaxEscalation(t *testing.T) {
	p, fc := newTestPolicy()
	cfg := testConfig(1000)
	key := "saturating-key"

	for i := 0; i < 6; i++ {
		ok, reason := p.Admit(utteranceFor(key, "boom"), nil, cfg)
		require.Truef(t, ok, "admit #%d should succeed, got reason %q", i, reason)
		p.Record(key)
		fc.Advance(6 * time.Second) // always >= maxEscalation(5) * 1s
	}
}

func TestPolicy_IgnorePatternDropped(t *testing.T) {
	p, _ := newTestPolicy()
	cfg := testConfig(0)
	cfg.Filters.IgnorePatterns = []string{"flaky"}

	ok, reason := p.Admit(utteranceFor("k1", "this is a flaky network blip"), nil, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonIgnored, reason)
}

func TestPolicy_KindFilterDropped(t *testing.T) {
	p, _ := newTestPolicy()
	cfg := testConfig(0)
	cfg.Filters.ErrorKinds = []string{domain.KindReferenceError}

	ok, reason := p.Admit(utteranceFor("k1", "boom"), nil, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonKindFiltered, reason)
}

func TestPolicy_AllowlistRequiresMatch(t *testing.T) {
	p, _ := newTestPolicy()
	cfg := testConfig(0)
	cfg.Filters.OnlyPatterns = []string{"critical"}

	ok, reason := p.Admit(utteranceFor("k1", "a minor glitch"), nil, cfg)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotAllowlisted, reason)

	ok, reason = p.Admit(utteranceFor("k2", "a critical failure"), nil, cfg)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}
