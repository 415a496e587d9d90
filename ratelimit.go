package fiber

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// pollErrorLimiter governs how often a repeated transient poll error is
// permitted to produce a log line, keyed by an arbitrary category (the
// error's string form). The spec requires transient poll errors to be
// "surfaced... and the loop continues" without specifying a log cadence;
// left unbounded, a persistently failing fd would flood the log once per
// idle tick.
type pollErrorLimiter interface {
	allow(category string) bool
}

type noOpPollErrorLimiter struct{}

func (noOpPollErrorLimiter) allow(string) bool { return true }

// CatrateLimiter adapts a catrate.Limiter to pollErrorLimiter.
type CatrateLimiter struct {
	limiter *catrate.Limiter
}

// NewCatrateLimiter builds a poll-error limiter allowing at most rate
// occurrences of the same error category per window.
func NewCatrateLimiter(window time.Duration, rate int) *CatrateLimiter {
	return &CatrateLimiter{
		limiter: catrate.NewLimiter(map[time.Duration]int{window: rate}),
	}
}

func (c *CatrateLimiter) allow(category string) bool {
	_, ok := c.limiter.Allow(category)
	return ok
}
