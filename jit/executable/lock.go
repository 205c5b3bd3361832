package executable

import (
	"sync"

	"go.uber.org/atomic"
)

// Lock guards all mutable allocator state.
type Lock struct {
	mu    sync.Mutex
	epoch atomic.Uint64
}

// Held proves that a Lock is held. It is only produced by Acquire and stops
// proving anything once released.
type Held struct {
	lock  *Lock
	epoch uint64
}

// Acquire locks l and returns the token proving it.
func (l *Lock) Acquire() Held {
	l.mu.Lock()
	return Held{lock: l, epoch: l.epoch.Inc()}
}

// Release unlocks the Lock. Releasing a token that does not hold the lock panics.
func (h Held) Release() {
	if !h.Valid() {
		panic(ErrLockNotHeld)
	}
	h.lock.epoch.Inc()
	h.lock.mu.Unlock()
}

// Valid reports whether h still proves its lock is held.
func (h Held) Valid() bool {
	return h.lock != nil && h.lock.epoch.Load() == h.epoch
}

// proves reports whether h proves that l is held.
func (h Held) proves(l *Lock) bool {
	return h.lock == l && h.Valid()
}

// mustProve panics unless h proves l is held.
func (h Held) mustProve(l *Lock) {
	if !h.proves(l) {
		panic(ErrLockNotHeld)
	}
}
