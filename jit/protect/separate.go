package protect

import (
	"fmt"

	"github.com/joshuapare/execalloc/jit/pool"
)

// SeparateHeap delegates writes to a thunk holding write permission.
type SeparateHeap struct {
	write SeparateHeapFunc
	size  uintptr
}

// NewSeparateHeap wraps fn for a pool of size bytes.
func NewSeparateHeap(fn SeparateHeapFunc, size int) *SeparateHeap {
	return &SeparateHeap{write: fn, size: uintptr(size)}
}

// DualMapping returns a thunk that writes through the read+write alias of a
// dual-mapped pool.
func DualMapping(p *pool.Pool) (SeparateHeapFunc, error) {
	if p.Mode() != pool.MapDualShared {
		return nil, fmt.Errorf("%w: pool is %s, not dual mapped", ErrUnsupported, p.Mode())
	}
	return func(off uintptr, src []byte) {
		copy(p.WritableAlias(int(off), len(src)), src)
	}, nil
}

func (s *SeparateHeap) Name() string { return string(ModeSeparate) }

// WriteIntoRegion implements Writer.
func (s *SeparateHeap) WriteIntoRegion(off uintptr, src []byte) error {
	if off > s.size || uintptr(len(src)) > s.size-off {
		return fmt.Errorf("%w: [%#x,+%d) of %#x", ErrOutOfRange, off, len(src), s.size)
	}
	if len(src) == 0 {
		return nil
	}
	s.write(off, src)
	return nil
}
