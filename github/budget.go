package github

import (
	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/logger"
)

const (
	// lowWaterMark is the remaining-request count below which no further
	// real calls are made until the quota resets (next run).
	lowWaterMark = 10

	// defaultRemaining is the conservative starting assumption, overwritten
	// by the X-RateLimit-Remaining header of the first real response.
	defaultRemaining = 60
)

// RateBudget tracks the shared remaining-request quota. It is injected into
// the Client and mutated only through Update, so a single source of truth
// gates every logical operation. Processing is single-threaded; if calls are
// ever made concurrent this must become an atomic compare-and-decrement.
type RateBudget struct {
	remaining int
	threshold int
}

// NewRateBudget returns a budget seeded with the conservative default.
func NewRateBudget() *RateBudget {
	return &RateBudget{remaining: defaultRemaining, threshold: lowWaterMark}
}

// Update overwrites the tracked remaining count with server telemetry.
func (b *RateBudget) Update(remaining int) {
	if remaining < 0 {
		return
	}
	if remaining < b.threshold && b.remaining >= b.threshold {
		logger.Warn("rate budget dropped below threshold",
			zap.Int("remaining", remaining),
			zap.Int("threshold", b.threshold))
	}
	b.remaining = remaining
}

// Remaining returns the tracked remaining count.
func (b *RateBudget) Remaining() int {
	return b.remaining
}

// Exhausted reports whether the budget is below the low-water mark.
func (b *RateBudget) Exhausted() bool {
	return b.remaining < b.threshold
}
