package metaalloc

import (
	"fmt"

	"github.com/joshuapare/execalloc/internal/align"
)

// CheckInvariants verifies the free lists and allocation index against each
// other. It returns an error wrapping ErrCorrupt describing the first
// violation found. O(n log n); intended for tests and debug tooling.
func (e *Engine) CheckInvariants() error {
	free := e.FreeRanges()
	used := e.AllocatedRanges()

	// Heaps and indexes agree.
	cells := 0
	for sc := range e.freeLists {
		for i, c := range e.freeLists[sc] {
			cells++
			if c.heapIndex != i {
				return fmt.Errorf("%w: cell at %d has heap index %d, stored at %d", ErrCorrupt, c.off, c.heapIndex, i)
			}
			if c.sc != sc || e.sizeTable.getSizeClass(c.size) != sc {
				return fmt.Errorf("%w: cell at %d of size %d filed in class %d", ErrCorrupt, c.off, c.size, sc)
			}
			if e.byOff[c.off] != c {
				return fmt.Errorf("%w: cell at %d missing from offset index", ErrCorrupt, c.off)
			}
			if start, ok := e.byEnd[c.end()]; !ok || start != c.off {
				return fmt.Errorf("%w: cell at %d missing from end index", ErrCorrupt, c.off)
			}
		}
	}
	if cells != len(e.byOff) || cells != len(e.byEnd) {
		return fmt.Errorf("%w: %d cells, %d offset entries, %d end entries", ErrCorrupt, cells, len(e.byOff), len(e.byEnd))
	}

	// Free and allocated ranges tile the region exactly, and no two free
	// ranges touch.
	var allocated int64
	pos, fi, ai := 0, 0, 0
	prevFree := false
	for pos < e.size {
		switch {
		case fi < len(free) && free[fi].Off == pos:
			r := free[fi]
			if prevFree {
				return fmt.Errorf("%w: adjacent free ranges at %d", ErrCorrupt, pos)
			}
			if r.Len <= 0 || !align.IsAligned(r.Off, e.granule) || !align.IsAligned(r.Len, e.granule) {
				return fmt.Errorf("%w: free range [%d,%d) not granule aligned", ErrCorrupt, r.Off, r.End())
			}
			pos, prevFree = r.End(), true
			fi++
		case ai < len(used) && used[ai].Off == pos:
			r := used[ai]
			if r.Len <= 0 || !align.IsAligned(r.Off, e.granule) || !align.IsAligned(r.Len, e.granule) {
				return fmt.Errorf("%w: allocated range [%d,%d) not granule aligned", ErrCorrupt, r.Off, r.End())
			}
			allocated += int64(r.Len)
			pos, prevFree = r.End(), false
			ai++
		default:
			return fmt.Errorf("%w: no range covers offset %d", ErrCorrupt, pos)
		}
	}
	if pos != e.size || fi != len(free) || ai != len(used) {
		return fmt.Errorf("%w: ranges overrun region end %d", ErrCorrupt, e.size)
	}

	if got := e.committed.Load(); got != allocated {
		return fmt.Errorf("%w: allocated counter %d, ranges sum to %d", ErrCorrupt, got, allocated)
	}

	for _, a := range e.allocs.items {
		if a.refs <= 0 {
			return fmt.Errorf("%w: allocation at %d has %d owners", ErrCorrupt, a.off, a.refs)
		}
	}

	// Page occupancy matches the allocations.
	want := make([]int32, len(e.pages.counts))
	for _, r := range used {
		first, last := e.pages.span(r.Off, r.Len)
		for pg := first; pg <= last; pg++ {
			want[pg]++
		}
	}
	committed := 0
	for pg, n := range want {
		if e.pages.counts[pg] != n {
			return fmt.Errorf("%w: page %d occupancy %d, want %d", ErrCorrupt, pg, e.pages.counts[pg], n)
		}
		if n > 0 {
			committed++
		}
	}
	if committed != e.pages.committed {
		return fmt.Errorf("%w: %d pages marked committed, want %d", ErrCorrupt, e.pages.committed, committed)
	}
	return nil
}
