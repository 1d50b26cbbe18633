// Package backoff provides the delay strategies used between job status
// polls. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultInterval is the poll delay used when none is configured.
const DefaultInterval = time.Second

// Strategy computes the delay before poll attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy. A zero maxDelay means no
// cap.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	f := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && f >= float64(e.Max) {
		return e.Max
	}
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

// New builds the strategy called name ("constant" or "exponential"; empty
// means constant). A zero interval falls back to DefaultInterval.
func New(name string, interval, maxInterval time.Duration) (Strategy, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	switch strings.ToLower(name) {
	case "", "constant":
		return NewConstant(interval), nil
	case "exponential":
		return NewExponential(interval, maxInterval), nil
	}
	return nil, fmt.Errorf("unknown poll strategy %q", name)
}
