package icache

import (
	"cmp"
	"context"
	"slices"

	"github.com/joshuapare/execalloc/internal/align"
)

// defaultRangeCapacity is the pre-allocated capacity for pending ranges.
const defaultRangeCapacity = 32

// Range is a written byte range at an absolute address.
type Range struct {
	Addr uintptr
	Len  int
}

// End returns the address one past the range.
func (r Range) End() uintptr {
	return r.Addr + uintptr(r.Len)
}

// Tracker accumulates written ranges and flushes them in one pass.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	lineSize uintptr
	flush    func(addr uintptr, n int)
}

// NewTracker creates a tracker that coalesces on the cache line size.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		lineSize: uintptr(LineSize()),
		flush:    Flush,
	}
}

// Add records a written range. Empty ranges are ignored.
func (t *Tracker) Add(addr uintptr, n int) {
	if n <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Addr: addr, Len: n})
}

// Len returns the number of pending, uncoalesced ranges.
func (t *Tracker) Len() int {
	return len(t.ranges)
}

// Reset drops all pending ranges without flushing them.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Flush flushes the coalesced pending ranges and clears them.
//
// The context is checked between ranges. If cancelled, the ranges not yet
// flushed stay pending and the context error is returned.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.flush(r.Addr, r.Len)
	}

	t.ranges = t.ranges[:0]
	return nil
}

// Coalesced returns the line-aligned, sorted, merged ranges a Flush would
// issue.
func (t *Tracker) Coalesced() []Range {
	return t.coalesce()
}

// coalesce line-aligns all ranges, sorts them, and merges overlapping or
// adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	line := t.lineSize
	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := align.DownUintptr(r.Addr, line)
		end := align.UpUintptr(r.End(), line)
		aligned[i] = Range{Addr: start, Len: int(end - start)}
	}

	slices.SortFunc(aligned, func(a, b Range) int {
		return cmp.Compare(a.Addr, b.Addr)
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Addr <= current.End() {
			if end := next.End(); end > current.End() {
				current.Len = int(end - current.Addr)
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
