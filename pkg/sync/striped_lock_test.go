package sync

import (
	"fmt"
	base "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/solana-sdk-go/pkg/testutil"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 64
	operationCount := 1000

	l := NewStripedLock(4)

	var wg base.WaitGroup
	start := make(chan struct{})
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		key := []byte(fmt.Sprintf("worker%d", i))
		for j := 0; j < operationCount; j++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				<-start

				mu := l.Get(key)
				mu.Lock()
				data[worker]++
				mu.Unlock()
			}(i)
		}
	}

	close(start)
	wg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_SameKey(t *testing.T) {
	l := NewStripedLock(16)
	assert.Same(t, l.Get([]byte("a")), l.Get([]byte("a")))

	single := NewStripedLock(0)
	assert.Same(t, single.Get([]byte("a")), single.Get([]byte("b")))
}

func TestStripedLock_Exclusive(t *testing.T) {
	l := NewStripedLock(8)
	key := []byte("table")

	mu := l.Get(key)
	mu.Lock()

	var acquired atomic.Bool
	go func() {
		other := l.Get(key)
		other.Lock()
		acquired.Store(true)
		other.Unlock()
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load())

	mu.Unlock()
	require.NoError(t, testutil.WaitFor(time.Second, 5*time.Millisecond, acquired.Load))
}
