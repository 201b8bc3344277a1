package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the stripe indexes [0, size).
type ring struct {
	points *treemap.Map

	// first caches the stripe of the lowest point, which keys hashing past
	// the last point wrap around to.
	first int
}

func newRing(size, replicas int) *ring {
	points := treemap.NewWith(utils.Int64Comparator)

	for stripe := 0; stripe < size; stripe++ {
		entryHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("entry%d", stripe)))
		entryHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(entryHashBytes, entryHash)

		for replica := 0; replica < replicas; replica++ {
			replicaBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(replicaBytes, uint32(replica))

			hasher := murmur3.New128()
			hasher.Write(entryHashBytes)
			hasher.Write(replicaBytes)
			point, _ := hasher.Sum128()
			points.Put(int64(point), stripe)
		}
	}

	r := &ring{points: points}
	if _, v := points.Min(); v != nil {
		r.first = v.(int)
	}
	return r
}

// stripe returns the stripe key is consistently mapped to.
func (r *ring) stripe(key []byte) int {
	if _, v := r.points.Ceiling(hashKey(key)); v != nil {
		return v.(int)
	}
	return r.first
}

func hashKey(key []byte) int64 {
	h, _ := murmur3.Sum128(key)
	return int64(h)
}
