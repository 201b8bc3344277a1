package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/solana-sdk-go/pkg/config"
	"github.com/code-payments/solana-sdk-go/pkg/retry/backoff"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(attempts uint, err error) bool

// Limit returns a strategy that limits the total number of attempts.
// maxAttempts should be >= 1, since the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// LimitConfig is Limit with the maximum number of attempts read from a config
// on every evaluation.
func LimitConfig(maxAttempts config.Uint64) Strategy {
	return func(attempts uint, _ error) bool {
		return uint64(attempts) < maxAttempts.Get(context.Background())
	}
}

// RetriableErrors returns a strategy that only retries the provided errors,
// including when wrapped.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ uint, err error) bool {
		return isAny(err, retriableErrors)
	}
}

// NonRetriableErrors returns a strategy that retries everything except the
// provided errors, including when wrapped.
func NonRetriableErrors(nonRetriableErrors ...error) Strategy {
	return func(_ uint, err error) bool {
		return !isAny(err, nonRetriableErrors)
	}
}

// Backoff returns a strategy that sleeps for the delay of strategy, capped at
// maxBackoff, before allowing the next attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, _ error) bool {
		sleeperImpl.Sleep(capDelay(strategy(attempts), maxBackoff))
		return true
	}
}

// BackoffWithJitter returns a strategy similar to Backoff, with the capped
// delay randomly shifted by up to jitter (as a fraction) in either direction.
// For example, a capped delay of 100ms with a jitter of 0.1 sleeps between
// 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := capDelay(strategy(attempts), maxBackoff)
		scale := 1 + jitter*(2*rand.Float64()-1)
		sleeperImpl.Sleep(time.Duration(float64(delay) * scale))
		return true
	}
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type sleeper interface {
	Sleep(time.Duration)
}

// realSleeper uses the time package to perform actual sleeps
type realSleeper struct{}

func (r *realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = &realSleeper{}
