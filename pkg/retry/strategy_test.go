package retry

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/solana-sdk-go/pkg/config/memory"
	"github.com/code-payments/solana-sdk-go/pkg/config/wrapper"
	"github.com/code-payments/solana-sdk-go/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	strategy := Limit(2)

	// One iteration has been executed. Try again.
	assert.True(t, strategy(1, errors.New("test")))
	// Two iterations have been executred. Do not try again.
	assert.False(t, strategy(2, errors.New("test")))

	counter, err := Retry(func() error {
		return errors.New("test")
	}, Limit(2))

	assert.EqualError(t, err, "test")
	assert.Equal(t, uint(2), counter)
}

func TestLimitConfig(t *testing.T) {
	mock := memory.NewConfig(nil)
	strategy := LimitConfig(wrapper.NewUint64Config(mock, 2))

	assert.True(t, strategy(1, errors.New("test")))
	assert.False(t, strategy(2, errors.New("test")))

	mock.SetValue(uint64(4))
	assert.True(t, strategy(3, errors.New("test")))
	assert.False(t, strategy(4, errors.New("test")))
}

func TestRetriableErrors(t *testing.T) {
	retriableErrors := []error{
		errors.New("retriableA"),
		errors.New("retriableB"),
		errors.New("retriableC"),
	}

	strategy := RetriableErrors(retriableErrors...)
	for _, err := range retriableErrors {
		assert.True(t, strategy(1, err))
		// Ensure wrapped errors are detected.
		assert.True(t, strategy(1, errors.Wrap(err, "wrapper")))
	}
	assert.False(t, strategy(2, errors.New("unexpected")))
}

func TestNonRetriableErrors(t *testing.T) {
	nonRetriableErrors := []error{
		errors.New("nonRetriableA"),
		errors.New("nonRetriableB"),
		errors.New("nonRetriableC"),
	}

	strategy := NonRetriableErrors(nonRetriableErrors...)
	for _, err := range nonRetriableErrors {
		assert.False(t, strategy(1, err))
		// Ensure wrapped errors are detected.
		assert.False(t, strategy(1, errors.Wrap(err, "wrapper")))
	}
	assert.True(t, strategy(1, errors.New("unexpected")))
}

func TestBackoff(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := Backoff(backoff.BinaryExponential(100*time.Millisecond), 300*time.Millisecond)

	for i := uint(1); i <= 4; i++ {
		assert.True(t, strategy(i, errors.New("test-error")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, ts.sleepTimes)
}

func TestBackoffWithJitter(t *testing.T) {
	iterations := 10000
	delay := 1 * time.Millisecond

	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)

	for i := 0; i < iterations; i++ {
		assert.True(t, strategy(1, errors.New("err")))
	}

	for _, d := range ts.sleepTimes {
		assert.InDelta(t, float64(delay), float64(d), 0.1*float64(delay))
	}

	// We expect the mean to be the delay +/- 10%
	assert.InDelta(t, float64(delay), float64(ts.Mean()), 0.1*float64(delay))

	// A uniform 10% window around the mean has an average deviation of 5%.
	assert.InDelta(t,
		0.05*float64(delay),
		float64(ts.AbsDeviation()),
		0.05*0.05*float64(delay),
	)
}

type testSleeper struct {
	sleepTimes []time.Duration
}

func (t *testSleeper) Sleep(d time.Duration) {
	t.sleepTimes = append(t.sleepTimes, d)
}

func (t *testSleeper) Mean() (mean time.Duration) {
	for _, d := range t.sleepTimes {
		mean += d
	}
	return time.Duration(int(mean) / len(t.sleepTimes))
}

func (t *testSleeper) AbsDeviation() (dev time.Duration) {
	mean := t.Mean()
	for _, d := range t.sleepTimes {
		dev += time.Duration(math.Abs(float64(d) - float64(mean)))
	}
	return time.Duration(int(dev) / len(t.sleepTimes))
}
