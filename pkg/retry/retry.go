// Package retry runs actions until they succeed or a strategy gives up.
package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries the provided action.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier that will retry actions based off of the
// provided strategies. If no strategies are provided, the retrier acts
// as a tight-loop, retrying until no error is returned from the action.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry executes the provided action until it succeeds, or one of the
// strategies rejects another attempt. It returns the number of attempts made.
//
// Strategies are consulted in order and evaluation stops at the first
// rejection, so strategies that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (attempts uint, err error) {
	for attempts = 1; ; attempts++ {
		if err = action(); err == nil {
			return attempts, nil
		}

		if !allow(strategies, attempts, err) {
			return attempts, err
		}
	}
}

func allow(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
