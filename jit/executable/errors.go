package executable

import (
	"errors"
	"fmt"

	"github.com/joshuapare/execalloc/jit/metaalloc"
	"github.com/joshuapare/execalloc/jit/protect"
)

var (
	// ErrInvalidAllocator indicates the pool could not be reserved; every
	// allocation on such an allocator fails with it.
	ErrInvalidAllocator = errors.New("executable: allocator is not valid")

	// ErrAlreadyInitialized indicates a second Initialize call.
	ErrAlreadyInitialized = errors.New("executable: already initialized")

	// ErrNotInitialized is the panic value of Singleton before Initialize.
	ErrNotInitialized = errors.New("executable: Singleton called before Initialize")

	// ErrPressureRejected indicates the pressure policy denied an allocation.
	ErrPressureRejected = errors.New("executable: rejected under memory pressure")

	// ErrFuzzed indicates an allocation failed on purpose by allocation fuzzing.
	// It wraps metaalloc.ErrOutOfPoolMemory so callers treat it as exhaustion.
	ErrFuzzed = fmt.Errorf("%w: allocation fuzzing", metaalloc.ErrOutOfPoolMemory)

	// ErrNotAllocated indicates a pool write outside every live allocation.
	// It wraps protect.ErrOutOfRange.
	ErrNotAllocated = fmt.Errorf("%w: destination is not inside a live allocation", protect.ErrOutOfRange)

	// ErrWriterAlreadySet indicates a second SetSeparateHeapWriter call.
	ErrWriterAlreadySet = errors.New("executable: separate heap writer already set")

	// ErrLockNotHeld is the panic value when a Held token does not prove the lock.
	ErrLockNotHeld = errors.New("executable: lock not held")

	// ErrSingletonClose indicates an attempt to close the process-wide allocator.
	ErrSingletonClose = errors.New("executable: the process-wide allocator cannot be closed")

	// ErrNoWritePath is the panic value of a pool write with no strategy.
	ErrNoWritePath = protect.ErrNoWritePath

	// ErrStaleHandle indicates a Memory that was already released.
	ErrStaleHandle = metaalloc.ErrStaleHandle
)
