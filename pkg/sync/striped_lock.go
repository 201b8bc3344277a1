package sync

import (
	base "sync"
)

const (
	replicasPerStripe = 200
)

// StripedLock maps an unbounded key space onto a fixed set of locks, so
// work on the same key is serialized without a lock per key.
type StripedLock struct {
	locks []base.RWMutex
	ring  *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newRing(int(stripes), replicasPerStripe),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.ring.stripe(key)]
}
