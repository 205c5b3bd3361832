package executable

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"go.uber.org/atomic"

	"github.com/joshuapare/execalloc/jit/pool"
)

var (
	initMu    sync.Mutex
	singleton atomic.Pointer[Allocator]
)

// Initialize creates the process-wide allocator and publishes the pool
// bounds for IsJITPC. A second call returns ErrAlreadyInitialized and
// reserves nothing.
//
// If the pool cannot be reserved the allocator is still installed, invalid,
// and the returned error wraps ErrInvalidAllocator.
func Initialize(cfg Config) error {
	initMu.Lock()
	defer initMu.Unlock()

	if singleton.Load() != nil {
		return ErrAlreadyInitialized
	}

	a := newAllocator(cfg, loadSeparateHeapWriter())
	a.singleton = true
	singleton.Store(a)

	if !a.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidAllocator, a.Err())
	}
	if err := pool.SetGlobalBounds(a.pool.Bounds()); err != nil {
		return fmt.Errorf("executable: publish pool bounds: %w", err)
	}
	return nil
}

// Singleton returns the process-wide allocator. It panics before Initialize.
func Singleton() *Allocator {
	a := singleton.Load()
	if a == nil {
		panic(ErrNotInitialized)
	}
	return a
}

// IsInitialized reports whether Initialize has run.
func IsInitialized() bool {
	return singleton.Load() != nil
}

// IsValid reports whether the process-wide allocator exists and is valid.
func IsValid() bool {
	a := singleton.Load()
	return a != nil && a.IsValid()
}

// Allocate allocates from the process-wide allocator.
func Allocate(size int, owner OwnerID, effort Effort) (*Memory, error) {
	return Singleton().Allocate(size, owner, effort)
}

// GetLock returns the lock of the process-wide allocator.
func GetLock() *Lock {
	return Singleton().GetLock()
}

// IsValidExecutableMemory checks addr against the process-wide allocator.
func IsValidExecutableMemory(held Held, addr uintptr) bool {
	return Singleton().IsValidExecutableMemory(held, addr)
}

// CommittedByteCount returns the bytes allocated from the process-wide pool.
func CommittedByteCount() int64 {
	return Singleton().CommittedByteCount()
}

// UnderMemoryPressure queries the process-wide allocator.
func UnderMemoryPressure() bool {
	return Singleton().UnderMemoryPressure()
}

// MemoryPressureMultiplier queries the process-wide allocator.
func MemoryPressureMultiplier(added int) float64 {
	return Singleton().MemoryPressureMultiplier(added)
}

// DumpProfile dumps the process-wide allocator.
func DumpProfile(w io.Writer) error {
	return Singleton().DumpProfile(w)
}

// PerformJITMemcpy copies through the process-wide allocator. Before
// Initialize there is no pool, so every write is a plain copy.
func PerformJITMemcpy(dst unsafe.Pointer, src []byte) (unsafe.Pointer, error) {
	if a := singleton.Load(); a != nil {
		return a.PerformJITMemcpy(dst, src)
	}
	copy(unsafe.Slice((*byte)(dst), len(src)), src)
	return dst, nil
}

// IsJITPC reports whether pc points into the process-wide pool.
func IsJITPC(pc uintptr) bool {
	return pool.IsJITPC(pc)
}
