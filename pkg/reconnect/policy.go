// Package reconnect defines the policy that decides whether and when a lost
// connection is re-established.
//
// A Policy is asked once before the first attempt and once after every failed
// attempt. It sees how many attempts already failed, how long reconnecting has
// taken so far and what caused the connection loss, and answers with either
// RetryAfter(delay) or GiveUp().
package reconnect

import (
	cryptorand "crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryContext is the input to a policy decision.
type RetryContext struct {
	// PreviousRetryCount is the number of failed attempts so far.
	PreviousRetryCount int

	// Elapsed is the time since reconnecting began.
	Elapsed time.Duration

	// Reason is the error that caused the connection loss.
	Reason error
}

// Decision is either a delay before the next attempt or the end of reconnecting.
type Decision struct {
	delay time.Duration
	retry bool
}

// RetryAfter schedules the next attempt after d. Negative delays count as zero.
func RetryAfter(d time.Duration) Decision {
	if d < 0 {
		d = 0
	}
	return Decision{delay: d, retry: true}
}

// GiveUp ends reconnecting.
func GiveUp() Decision {
	return Decision{}
}

// Retry returns the delay and true, or false when the decision is to give up.
func (d Decision) Retry() (time.Duration, bool) {
	return d.delay, d.retry
}

// IsGiveUp reports whether reconnecting should end
func (d Decision) IsGiveUp() bool {
	return !d.retry
}

func (d Decision) String() string {
	if !d.retry {
		return "give up"
	}
	return fmt.Sprintf("retry after %s", d.delay)
}

// Policy decides the next reconnect step.
type Policy interface {
	NextRetryDelay(ctx RetryContext) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx RetryContext) Decision

// NextRetryDelay calls f
func (f PolicyFunc) NextRetryDelay(ctx RetryContext) Decision {
	return f(ctx)
}

// DefaultDelays is the schedule used by Default.
var DefaultDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// Default retries immediately, then after 2, 10 and 30 seconds, then gives up.
func Default() Policy {
	return Fixed(DefaultDelays...)
}

// Fixed retries once per delay, in order, then gives up.
func Fixed(delays ...time.Duration) Policy {
	schedule := append([]time.Duration(nil), delays...)
	return PolicyFunc(func(ctx RetryContext) Decision {
		if ctx.PreviousRetryCount < 0 || ctx.PreviousRetryCount >= len(schedule) {
			return GiveUp()
		}
		return RetryAfter(schedule[ctx.PreviousRetryCount])
	})
}

// ExponentialConfig configures Exponential.
type ExponentialConfig struct {
	// Initial is the delay before the first attempt.
	Initial time.Duration
	// Max caps any single delay. Zero means no cap.
	Max time.Duration
	// Factor multiplies the delay after every failure. Values below 1 mean 2.
	Factor float64
	// MaxRetries bounds the number of attempts. Zero means unbounded.
	MaxRetries int
	// MaxElapsed gives up once reconnecting took this long. Zero means never.
	MaxElapsed time.Duration
	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter float64
}

// Exponential retries with capped exponential backoff and optional jitter.
func Exponential(cfg ExponentialConfig) Policy {
	if cfg.Factor < 1 {
		cfg.Factor = 2
	}
	return PolicyFunc(func(ctx RetryContext) Decision {
		if cfg.MaxRetries > 0 && ctx.PreviousRetryCount >= cfg.MaxRetries {
			return GiveUp()
		}
		if cfg.MaxElapsed > 0 && ctx.Elapsed >= cfg.MaxElapsed {
			return GiveUp()
		}

		delay := float64(cfg.Initial) * math.Pow(cfg.Factor, float64(ctx.PreviousRetryCount))
		if cfg.Max > 0 && delay > float64(cfg.Max) {
			delay = float64(cfg.Max)
		}

		if cfg.Jitter > 0 {
			if r, err := secureRandFloat64(); err == nil {
				delay += delay * cfg.Jitter * (r*2 - 1)
			}
		}

		// Beyond MaxInt64 the float to Duration conversion is undefined.
		if math.IsNaN(delay) {
			delay = 0
		}
		if delay >= math.MaxInt64 {
			return RetryAfter(time.Duration(math.MaxInt64))
		}
		return RetryAfter(time.Duration(delay))
	})
}

// secureRandFloat64 returns a uniformly distributed float64 in [0, 1).
func secureRandFloat64() (float64, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 53)
	n, err := cryptorand.Int(cryptorand.Reader, max)
	if err != nil {
		return 0, err
	}
	return float64(n.Int64()) / float64(max.Int64()), nil
}

// FromBackOff adapts a backoff.BackOff schedule. The schedule is reset at the
// start of every reconnect sequence; backoff.Stop means give up.
func FromBackOff(b backoff.BackOff) Policy {
	return &backOffPolicy{b: b}
}

type backOffPolicy struct {
	mu sync.Mutex
	b  backoff.BackOff
}

func (p *backOffPolicy) NextRetryDelay(ctx RetryContext) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.PreviousRetryCount == 0 {
		p.b.Reset()
	}
	next := p.b.NextBackOff()
	if next == backoff.Stop {
		return GiveUp()
	}
	return RetryAfter(next)
}
