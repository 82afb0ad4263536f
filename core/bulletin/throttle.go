package bulletin

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces successive operations of a batch. Wait is called before each operation.
type Throttle interface {
	Wait(ctx context.Context) error
}

type noThrottle struct{}

func (noThrottle) Wait(ctx context.Context) error { return ctx.Err() }

// NoThrottle never blocks.
var NoThrottle Throttle = noThrottle{}

// NewIntervalThrottle lets one operation through every interval, the first one immediately.
// interval <= 0 disables throttling.
func NewIntervalThrottle(interval time.Duration) Throttle {
	if interval <= 0 {
		return NoThrottle
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// ThrottlePolicy builds the throttle of a single run, so pacing never carries over between runs.
type ThrottlePolicy func() Throttle

// Interval paces the items of each run one interval apart.
func Interval(interval time.Duration) ThrottlePolicy {
	return func() Throttle { return NewIntervalThrottle(interval) }
}

func (p ThrottlePolicy) start() Throttle {
	if p == nil {
		return NoThrottle
	}
	if th := p(); th != nil {
		return th
	}
	return NoThrottle
}
