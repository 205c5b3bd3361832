package executable

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/logger"
	"github.com/joshuapare/execalloc/jit/metaalloc"
	"github.com/joshuapare/execalloc/jit/protect"
)

// Memory is a reference-counted range of executable memory. It starts with
// one owner; Retain adds owners and the range returns to the free list when
// the last owner calls Release.
type Memory struct {
	alloc  *Allocator
	handle metaalloc.Handle
	owner  OwnerID
	effort Effort
	start  uintptr
}

// Start returns the first address of the range.
func (m *Memory) Start() uintptr { return m.start }

// End returns the address one past the range.
func (m *Memory) End() uintptr { return m.start + uintptr(m.handle.Size) }

// Size returns the usable size, the request rounded up to the granule.
func (m *Memory) Size() int { return m.handle.Size }

// Owner returns the owner the range was allocated for.
func (m *Memory) Owner() OwnerID { return m.owner }

// Effort returns the effort the range was allocated with.
func (m *Memory) Effort() Effort { return m.effort }

// Handle returns the engine handle naming the range.
func (m *Memory) Handle() metaalloc.Handle { return m.handle }

// Contains reports whether addr lies inside the range.
func (m *Memory) Contains(addr uintptr) bool {
	return m.start <= addr && addr < m.End()
}

// Pointer returns the start of the range as a pointer for PerformJITMemcpy.
// It is a raw address: dereferencing it after the last Release faults.
func (m *Memory) Pointer() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(m.alloc.pool.Slice(m.handle.Offset, m.handle.Size)))
}

func (m *Memory) String() string {
	return fmt.Sprintf("[%#x,%#x) %s", m.start, m.End(), m.owner)
}

// Retain adds an owner.
func (m *Memory) Retain() error {
	held := m.alloc.lock.Acquire()
	defer held.Release()
	if !m.alloc.IsValid() {
		return ErrInvalidAllocator
	}
	return m.alloc.engine.Retain(m.handle)
}

// Release drops an owner. The last release frees the range; releasing more
// times than the range has owners returns ErrStaleHandle.
func (m *Memory) Release() error {
	held := m.alloc.lock.Acquire()
	defer held.Release()
	if !m.alloc.IsValid() {
		return ErrInvalidAllocator
	}

	freed, err := m.alloc.engine.Release(m.handle)
	if err != nil {
		return err
	}
	if freed {
		m.alloc.stats.releases.Inc()
		if m.alloc.logAlloc {
			logger.L.Debug("executable memory freed",
				zap.Uintptr("start", m.start),
				zap.Int("size", m.handle.Size),
				zap.Stringer("owner", m.owner),
			)
		}
	}
	return nil
}

// Bytes returns a copy of the range's contents. It fails with
// ErrStaleHandle once the last owner has released the range.
func (m *Memory) Bytes() ([]byte, error) {
	a := m.alloc
	held := a.lock.Acquire()
	defer held.Release()
	if !a.IsValid() {
		return nil, ErrInvalidAllocator
	}
	if _, err := a.engine.Lookup(m.handle); err != nil {
		return nil, err
	}

	out := make([]byte, m.handle.Size)
	if r, ok := a.writer.(protect.Reader); ok {
		if err := r.ReadRegion(uintptr(m.handle.Offset), out); err != nil {
			return nil, err
		}
		return out, nil
	}
	copy(out, a.pool.Slice(m.handle.Offset, m.handle.Size))
	return out, nil
}
