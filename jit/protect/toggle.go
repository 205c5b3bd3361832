package protect

import (
	"fmt"
	"sync"

	"github.com/joshuapare/execalloc/internal/vmem"
	"github.com/joshuapare/execalloc/jit/pool"
)

// ProtectToggle flips the touched pages to read+write for the duration of
// a copy. The flip is process wide: a thread executing from the same pages
// during the copy faults, so callers must not run code they are patching.
type ProtectToggle struct {
	mu   sync.Mutex
	pool *pool.Pool
}

// NewProtectToggle creates a toggle writer over p.
func NewProtectToggle(p *pool.Pool) *ProtectToggle {
	return &ProtectToggle{pool: p}
}

func (t *ProtectToggle) Name() string { return string(ModeMprotect) }

// WriteIntoRegion implements Writer.
func (t *ProtectToggle) WriteIntoRegion(off uintptr, src []byte) error {
	if off > uintptr(t.pool.Size()) || uintptr(len(src)) > uintptr(t.pool.Size())-off {
		return fmt.Errorf("%w: [%#x,+%d) of %#x", ErrOutOfRange, off, len(src), t.pool.Size())
	}
	if len(src) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	o, n := int(off), len(src)
	if err := t.pool.Protect(o, n, vmem.ProtRW); err != nil {
		return fmt.Errorf("protect: open pages for write: %w", err)
	}
	copy(t.pool.Slice(o, n), src)

	if err := t.pool.Protect(o, n, t.pool.Prot()); err != nil {
		return fmt.Errorf("protect: restore page protection: %w", err)
	}
	return nil
}
