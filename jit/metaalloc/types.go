package metaalloc

import "fmt"

// OwnerID is an opaque identifier attributed to an allocation for diagnostics.
type OwnerID uint64

func (o OwnerID) String() string {
	return fmt.Sprintf("owner:%#x", uint64(o))
}

// Handle names one allocated range. The zero Handle names nothing.
type Handle struct {
	Offset int
	Size   int
	Gen    uint64
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.Size == 0
}

// End returns the offset one past the range.
func (h Handle) End() int {
	return h.Offset + h.Size
}

// Contains reports whether off lies inside the range.
func (h Handle) Contains(off int) bool {
	return h.Offset <= off && off < h.End()
}

// Range is a half-open offset range [Off, Off+Len).
type Range struct {
	Off int
	Len int
}

// End returns Off+Len.
func (r Range) End() int {
	return r.Off + r.Len
}

// Info describes one live allocation.
type Info struct {
	Handle Handle
	Owner  OwnerID
	Refs   int
}

// Stats holds engine counters. Current values reflect the engine state at the
// time Stats was called.
type Stats struct {
	AllocCalls       int
	AllocFailures    int
	LargeAllocs      int
	ReleaseCalls     int
	FreeCalls        int
	Splits           int
	CoalesceForward  int
	CoalesceBackward int
	CommitCalls      int
	DecommitCalls    int
	CommitFailures   int
	DecommitFailures int

	BytesReserved      int64
	BytesAllocated     int64
	PeakBytesAllocated int64
	PagesCommitted     int
	LiveAllocations    int
	FreeRanges         int
	LargestFreeRange   int
}
