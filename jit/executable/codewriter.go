package executable

import (
	"context"
	"fmt"
	"io"

	"github.com/joshuapare/execalloc/jit/icache"
	"github.com/joshuapare/execalloc/jit/protect"
)

// CodeWriter writes a sequence of instructions into one Memory and flushes
// the instruction cache once, on Finalize, over everything written.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type CodeWriter struct {
	mem     *Memory
	tracker *icache.Tracker
	pos     int
}

// NewCodeWriter creates a writer positioned at the start of m.
func (m *Memory) NewCodeWriter() *CodeWriter {
	return &CodeWriter{mem: m, tracker: icache.NewTracker()}
}

// Write appends p at the current position. Implements io.Writer.
func (w *CodeWriter) Write(p []byte) (int, error) {
	n, err := w.WriteAt(p, int64(w.pos))
	w.pos += n
	return n, err
}

// WriteAt writes p at offset off within the memory. Implements io.WriterAt.
func (w *CodeWriter) WriteAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off+int64(len(p)) > int64(w.mem.Size()) {
		return 0, fmt.Errorf("%w: %d bytes at offset %d of %d", protect.ErrOutOfRange, len(p), off, w.mem.Size())
	}
	a := w.mem.alloc
	if !a.IsValid() {
		return 0, ErrInvalidAllocator
	}
	addr := w.mem.Start() + uintptr(off)
	if err := a.writeRegion(addr, p); err != nil {
		return 0, err
	}
	w.tracker.Add(addr, len(p))
	return len(p), nil
}

// Len returns the current write position.
func (w *CodeWriter) Len() int {
	return w.pos
}

// Pending reports the number of written ranges not yet flushed.
func (w *CodeWriter) Pending() int {
	return w.tracker.Len()
}

// Finalize flushes the instruction cache over everything written since the
// last Finalize. The code may be executed once it returns nil.
func (w *CodeWriter) Finalize(ctx context.Context) error {
	return w.tracker.Flush(ctx)
}

var (
	_ io.Writer   = (*CodeWriter)(nil)
	_ io.WriterAt = (*CodeWriter)(nil)
)
