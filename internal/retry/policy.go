// Package retry implements immutable backoff policies shared by the
// reconciler's adapter-call retries and the supervisor's restart backoff.
package retry

import (
	"fmt"
	"time"
)

// BackoffMode selects the growth curve of a Policy.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       BackoffMode   // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy returns a sensible default policy (linear, 1s initial, 30s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// SupervisorBackoffPolicy returns the policy matching the supervisor's
// restart backoff formula, min(300, 2^min(restart_count-1, 8)) seconds. The
// exponent itself is capped at 8 (see Delay), so the formula's outer
// min(300, ...) never actually binds -- the sequence saturates at 2^8 = 256s,
// not 300s. Max is left at 300s as a belt-and-suspenders ceiling in case a
// future caller feeds a larger Initial in.
func SupervisorBackoffPolicy() Policy {
	return Policy{Mode: BackoffExponential, Initial: time.Second, Max: 300 * time.Second, MaxRetries: 0}
}

// maxExponentialShift bounds the exponent in exponential backoff (2^shift),
// matching the supervisor restart formula's min(restart_count-1, 8) term.
const maxExponentialShift = 8

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode BackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if mode != "" {
		switch mode {
		case BackoffFixed, BackoffLinear, BackoffExponential:
			p.Mode = mode
		default:
			// unknown -> keep default
		}
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		shift := retryCount - 1
		if shift > maxExponentialShift {
			shift = maxExponentialShift
		}
		d := p.Initial * (1 << shift)
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
