package pool

import (
	"go.uber.org/atomic"

	"github.com/joshuapare/execalloc/internal/ptrtag"
)

// Bounds is the half-open address range [Start, End) of a pool.
type Bounds struct {
	Start uintptr
	End   uintptr
}

// Contains reports whether addr lies inside the bounds.
func (b Bounds) Contains(addr uintptr) bool {
	return b.Start <= addr && addr < b.End
}

// Size returns the number of bytes covered.
func (b Bounds) Size() int {
	return int(b.End - b.Start)
}

var (
	globalStart atomic.Uintptr
	globalEnd   atomic.Uintptr
	globalSet   atomic.Bool
)

// SetGlobalBounds publishes the process-wide pool bounds. It succeeds once.
func SetGlobalBounds(b Bounds) error {
	if !globalSet.CompareAndSwap(false, true) {
		return ErrBoundsAlreadySet
	}
	// End is stored first so that a reader observing Start != 0 never sees
	// a stale zero End and a range that includes nothing.
	globalEnd.Store(b.End)
	globalStart.Store(b.Start)
	return nil
}

// Start returns the start of the process-wide pool, or 0 before it is set.
func Start() uintptr {
	return globalStart.Load()
}

// End returns the end of the process-wide pool, or 0 before it is set.
func End() uintptr {
	return globalEnd.Load()
}

// GlobalBounds returns both bounds.
func GlobalBounds() Bounds {
	return Bounds{Start: Start(), End: End()}
}

// IsJITPC reports whether pc points into the process-wide pool.
// Any pointer tag is stripped before the comparison.
func IsJITPC(pc uintptr) bool {
	b := GlobalBounds()
	return b.Start != 0 && b.Contains(ptrtag.Untag(pc))
}

