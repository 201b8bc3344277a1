package testutil

import (
	"time"

	"github.com/pkg/errors"
)

// WaitFor polls condition every interval until it returns true, or fails once
// timeout has elapsed. condition is always evaluated at least once.
func WaitFor(timeout, interval time.Duration, condition func() bool) error {
	if timeout < interval {
		return errors.Errorf("timeout %v is shorter than interval %v", timeout, interval)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if condition() {
			return nil
		}

		select {
		case <-deadline.C:
			return errors.Errorf("condition not met within %v", timeout)
		case <-ticker.C:
		}
	}
}
