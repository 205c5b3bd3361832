package executable

import (
	"errors"
	"fmt"
	"unsafe"

	"go.uber.org/atomic"

	"github.com/joshuapare/execalloc/internal/ptrtag"
	"github.com/joshuapare/execalloc/jit/protect"
)

var separateHeapWriter atomic.Pointer[protect.SeparateHeapFunc]

// SetSeparateHeapWriter registers the process-wide separate-heap thunk used
// by Initialize. It may be called once, before Initialize.
func SetSeparateHeapWriter(fn protect.SeparateHeapFunc) error {
	if fn == nil {
		return errors.New("executable: nil separate heap writer")
	}
	initMu.Lock()
	defer initMu.Unlock()
	if singleton.Load() != nil {
		return ErrAlreadyInitialized
	}
	if !separateHeapWriter.CompareAndSwap(nil, &fn) {
		return ErrWriterAlreadySet
	}
	return nil
}

func loadSeparateHeapWriter() protect.SeparateHeapFunc {
	if p := separateHeapWriter.Load(); p != nil {
		return *p
	}
	return nil
}

// PerformJITMemcpy copies src to dst and returns dst.
//
// Inside the pool the write goes through the selected strategy and the
// instruction cache is flushed over the written bytes before returning.
// The destination must lie inside one live allocation; anything else fails
// with ErrNotAllocated. Outside the pool it is a plain copy. A pool write
// with no strategy available panics with ErrNoWritePath.
func (a *Allocator) PerformJITMemcpy(dst unsafe.Pointer, src []byte) (unsafe.Pointer, error) {
	if len(src) == 0 {
		return dst, nil
	}
	addr := ptrtag.Untag(uintptr(dst))
	if !a.inPool(addr) {
		copy(unsafe.Slice((*byte)(dst), len(src)), src)
		a.stats.plainWrites.Inc()
		return dst, nil
	}
	if err := a.writeRegion(addr, src); err != nil {
		return nil, err
	}
	a.flush(addr, len(src))
	return dst, nil
}

func (a *Allocator) inPool(addr uintptr) bool {
	return a.pool != nil && a.pool.Bounds().Contains(addr)
}

// writeRegion writes src at pool address addr without flushing. The lock is
// held across the write so the target cannot be freed and decommitted
// underneath it.
func (a *Allocator) writeRegion(addr uintptr, src []byte) error {
	b := a.pool.Bounds()
	if uintptr(len(src)) > b.End-addr {
		return fmt.Errorf("%w: %d bytes at %#x cross the pool end %#x", protect.ErrOutOfRange, len(src), addr, b.End)
	}

	held := a.lock.Acquire()
	defer held.Release()
	if !a.IsValid() {
		return ErrInvalidAllocator
	}

	off := int(addr - b.Start)
	info, ok := a.engine.Find(off)
	if !ok || off+len(src) > info.Handle.End() {
		return fmt.Errorf("%w: %d bytes at %#x", ErrNotAllocated, len(src), addr)
	}

	if err := a.writer.WriteIntoRegion(uintptr(off), src); err != nil {
		if errors.Is(err, protect.ErrNoWritePath) {
			panic(err)
		}
		return err
	}
	a.stats.poolWrites.Inc()
	a.stats.bytesWritten.Add(int64(len(src)))
	return nil
}
