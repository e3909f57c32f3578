package vectorindex

import (
	"hash/fnv"
	"sync"
)

// DefaultStripes is the number of lock stripes used by the backends.
const DefaultStripes = 64

// KeyLocks serialises work per key without a global lock. Keys hash to
// a fixed set of mutexes, so unrelated keys rarely contend.
type KeyLocks struct {
	stripes []sync.Mutex
}

// NewKeyLocks creates n stripes. A non-positive n selects DefaultStripes.
func NewKeyLocks(n int) *KeyLocks {
	if n <= 0 {
		n = DefaultStripes
	}
	return &KeyLocks{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe of key and returns its unlock function.
func (l *KeyLocks) Lock(key string) func() {
	m := &l.stripes[l.index(key)]
	m.Lock()
	return m.Unlock
}

func (l *KeyLocks) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.stripes)))
}
