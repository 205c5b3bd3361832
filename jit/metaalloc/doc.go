// Package metaalloc carves and merges sub-ranges of one fixed region.
//
// # Overview
//
// The engine manages offsets inside a region whose size is fixed when the
// engine is created. It never touches the memory itself: backing is delegated
// to a PageCommitter, and the bytes are written by the caller through the
// executable write path.
//
// # Allocation
//
// Requests are rounded up to the granule (32 bytes by default). Free ranges
// live in segregated size-class min-heaps keyed on (size, offset), which gives
// deterministic best-fit allocation:
//
//	e, err := metaalloc.New(64<<20, metaalloc.Config{PageSize: 16384})
//	if err != nil {
//	    return err
//	}
//	h, err := e.Allocate(100, owner) // h.Size == 128
//
// Requests at or above the large threshold (page size × 4) are rounded to
// whole pages and placed on page boundaries; alignment slack is returned to
// the free lists.
//
// # Release and coalescing
//
// Handles are values: {Offset, Size, Gen}. The engine keeps a reference count
// per allocation. Retain adds an owner, Release drops one, and the last
// Release frees the range. The freed range is merged with a free neighbor on
// either side through O(1) start/end indexes, so no two free ranges are ever
// adjacent.
//
// # Page occupancy
//
// Each page counts the allocations overlapping it. The committer is told when
// a page gains its first allocation and when it loses its last one.
//
// # Thread Safety
//
// Engine instances are not thread-safe. Callers must serialize access with a
// single lock. CommittedBytes is the exception: it is an atomic read.
package metaalloc
