package domain

import "time"

// Filters holds the allow/deny pattern gates evaluated by the Policy after
// both cooldown checks pass.
type Filters struct {
	// IgnorePatterns are case-insensitive substrings; any match drops the
	// candidate utterance.
	IgnorePatterns []string
	// OnlyPatterns, when non-empty, require at least one case-insensitive
	// substring match or the utterance is dropped.
	OnlyPatterns []string
	// ErrorKinds, when non-empty, restrict admission to these kinds.
	ErrorKinds []string
}

// Config is an immutable snapshot held by the engine and replaced
// atomically via UpdateConfig. Zero value is a reasonable but inert
// default (Enabled is false); use NewDefaultConfig for sensible defaults.
type Config struct {
	Enabled bool

	Voice  string
	Rate   float64
	Pitch  float64
	Volume float64

	MaxMessageLength int
	CooldownMs       int64

	Humanize      bool
	FallbackToRaw bool

	Filters Filters

	Debug     bool
	AutoSetup bool
}

// NewDefaultConfig returns the engine's baseline configuration.
func NewDefaultConfig() Config {
	return Config{
		Enabled:          true,
		Voice:            "",
		Rate:             1.0,
		Pitch:            1.0,
		Volume:           1.0,
		MaxMessageLength: 240,
		CooldownMs:       5000,
		Humanize:         true,
		FallbackToRaw:    true,
		Debug:            false,
		AutoSetup:        false,
	}
}

// Cooldown returns CooldownMs as a time.Duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// Prosody extracts the configured prosody, falling back to DefaultProsody
// zero-valued fields so sinks never receive a zero rate/pitch/volume.
func (c Config) Prosody() Prosody {
	p := DefaultProsody
	if c.Rate != 0 {
		p.Rate = c.Rate
	}
	if c.Pitch != 0 {
		p.Pitch = c.Pitch
	}
	if c.Volume != 0 {
		p.Volume = c.Volume
	}
	return p
}

// ConfigPatch is a partial config used by UpdateConfig. A nil field is
// left untouched by the merge; unknown keys simply have no field to set
// and are ignored.
type ConfigPatch struct {
	Enabled *bool

	Voice  *string
	Rate   *float64
	Pitch  *float64
	Volume *float64

	MaxMessageLength *int
	CooldownMs       *int64

	Humanize      *bool
	FallbackToRaw *bool

	Filters *Filters

	Debug     *bool
	AutoSetup *bool
}

// Merge deep-merges patch into a copy of c and returns the result. c is
// never mutated.
func (c Config) Merge(patch ConfigPatch) Config {
	next := c
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.Voice != nil {
		next.Voice = *patch.Voice
	}
	if patch.Rate != nil {
		next.Rate = *patch.Rate
	}
	if patch.Pitch != nil {
		next.Pitch = *patch.Pitch
	}
	if patch.Volume != nil {
		next.Volume = *patch.Volume
	}
	if patch.MaxMessageLength != nil {
		next.MaxMessageLength = *patch.MaxMessageLength
	}
	if patch.CooldownMs != nil {
		next.CooldownMs = *patch.CooldownMs
	}
	if patch.Humanize != nil {
		next.Humanize = *patch.Humanize
	}
	if patch.FallbackToRaw != nil {
		next.FallbackToRaw = *patch.FallbackToRaw
	}
	if patch.Filters != nil {
		next.Filters = *patch.Filters
	}
	if patch.Debug != nil {
		next.Debug = *patch.Debug
	}
	if patch.AutoSetup != nil {
		next.AutoSetup = *patch.AutoSetup
	}
	return next
}
