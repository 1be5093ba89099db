package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotReady       = errors.New("sink not ready")
	ErrHumanizeFailed = errors.New("humanization failed")
)
