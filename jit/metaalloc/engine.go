package metaalloc

import (
	"container/heap"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/align"
	"github.com/joshuapare/execalloc/internal/logger"
)

const (
	// DefaultGranule is the allocation rounding unit. Every range offset and
	// size is a multiple of it, which keeps code naturally aligned.
	DefaultGranule = 32

	// largeAllocationPages sets the large threshold as a multiple of the page size.
	largeAllocationPages = 4
)

// Config configures an Engine.
type Config struct {
	// PageSize is the commit granularity. Required; must be a power of two
	// and a multiple of Granule.
	PageSize int

	// Granule is the rounding unit. Zero means DefaultGranule.
	Granule int

	// LargeThreshold is the request size from which ranges are page-aligned
	// whole pages. Zero means PageSize × 4.
	LargeThreshold int

	// SizeClasses selects the free-list layout. Nil means DefaultSizeClasses.
	SizeClasses *SizeClassConfig

	// Committer receives page occupancy transitions. Nil disables tracking.
	Committer PageCommitter

	// LogAllocations emits a debug entry per allocation and release.
	LogAllocations bool
}

// LargeAllocationThreshold returns the large threshold for a page size.
func LargeAllocationThreshold(pageSize int) int {
	return pageSize * largeAllocationPages
}

// Engine is the free-list engine over one fixed region.
type Engine struct {
	size           int // managed bytes, a multiple of the granule
	granule        int
	pageSize       int
	largeThreshold int

	sizeTable *sizeClassTable

	// Segregated free lists. Index sizeTable.NumClasses() is the large heap.
	freeLists []freeCellHeap

	// O(1) coalescing indexes.
	// byOff: start offset -> free cell (forward neighbor lookup)
	// byEnd: end offset -> start offset (backward neighbor lookup)
	byOff map[int]*freeCell
	byEnd map[int]int

	allocs allocIndex
	gen    uint64

	pages     pageOccupancy
	committer PageCommitter

	// committed is the live sum of allocated bytes. Written under the
	// caller's lock, read lock-free.
	committed atomic.Int64

	stats allocatorStats
	log   bool
}

// allocatorStats holds internal counters.
type allocatorStats struct {
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
	PeakBytes        int64
}

// New creates an engine managing size bytes. The usable size is size rounded
// down to the granule; the remainder is slack that is never handed out.
func New(size int, cfg Config) (*Engine, error) {
	if cfg.Granule == 0 {
		cfg.Granule = DefaultGranule
	}
	if !align.IsPowerOfTwo(cfg.Granule) {
		return nil, fmt.Errorf("%w: granule %d is not a power of two", ErrBadConfig, cfg.Granule)
	}
	if !align.IsPowerOfTwo(cfg.PageSize) || cfg.PageSize < cfg.Granule {
		return nil, fmt.Errorf("%w: page size %d", ErrBadConfig, cfg.PageSize)
	}
	if cfg.LargeThreshold == 0 {
		cfg.LargeThreshold = LargeAllocationThreshold(cfg.PageSize)
	}
	usable := align.Down(size, cfg.Granule)
	if usable <= 0 {
		return nil, fmt.Errorf("%w: region of %d bytes holds no granule", ErrBadConfig, size)
	}

	classes := DefaultSizeClasses
	if cfg.SizeClasses != nil {
		classes = *cfg.SizeClasses
	}
	if classes.MediumMax == 0 {
		classes.MediumMax = cfg.LargeThreshold
	}
	table := newSizeClassTable(classes)

	e := &Engine{
		size:           usable,
		granule:        cfg.Granule,
		pageSize:       cfg.PageSize,
		largeThreshold: cfg.LargeThreshold,
		sizeTable:      table,
		freeLists:      make([]freeCellHeap, table.NumClasses()+1),
		byOff:          make(map[int]*freeCell, 256),
		byEnd:          make(map[int]int, 256),
		pages:          newPageOccupancy(usable, cfg.PageSize),
		committer:      cfg.Committer,
		log:            cfg.LogAllocations,
	}

	// The whole region starts as one master free range.
	e.insertFreeCell(0, usable)
	return e, nil
}

// Size returns the number of bytes the engine manages.
func (e *Engine) Size() int {
	return e.size
}

// Granule returns the rounding unit.
func (e *Engine) Granule() int {
	return e.granule
}

// PageSize returns the commit granularity.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// LargeThreshold returns the size from which requests become page spans.
func (e *Engine) LargeThreshold() int {
	return e.largeThreshold
}

// RoundedSize returns the size a request for size bytes would occupy.
func (e *Engine) RoundedSize(size int) int {
	need := align.Up(size, e.granule)
	if need >= e.largeThreshold {
		need = align.Up(need, e.pageSize)
	}
	return need
}

// Allocate carves a range of at least size bytes and returns a handle with one owner.
func (e *Engine) Allocate(size int, owner OwnerID) (Handle, error) {
	e.stats.AllocCalls++

	if size <= 0 {
		e.stats.AllocFailures++
		return Handle{}, ErrZeroSize
	}
	if size > e.size {
		e.stats.AllocFailures++
		return Handle{}, ErrTooLarge
	}

	need := e.RoundedSize(size)
	large := need >= e.largeThreshold

	var cell *freeCell
	at := 0
	if large {
		cell, at = e.takeAligned(need, e.pageSize)
	} else {
		cell = e.takeBestFit(need)
		if cell != nil {
			at = cell.off
		}
	}
	if cell == nil {
		e.stats.AllocFailures++
		if e.log {
			logger.L.Debug("metaalloc: no fit",
				zap.Int("request", size),
				zap.Int("need", need),
				zap.Int64("allocated", e.committed.Load()),
				zap.Int("largestFree", e.largestFree()),
			)
		}
		return Handle{}, ErrOutOfPoolMemory
	}

	// Return head and tail slack to the free lists. The cell was maximally
	// coalesced, so neither piece has a free neighbor.
	if at > cell.off {
		e.stats.Splits++
		e.insertFreeCell(cell.off, at-cell.off)
	}
	if tail := cell.end() - (at + need); tail > 0 {
		e.stats.Splits++
		e.insertFreeCell(at+need, tail)
	}

	if err := e.commitRange(at, need); err != nil {
		// Undo the carve: the range goes back through the normal free path.
		e.freeRange(at, need)
		e.stats.AllocFailures++
		e.stats.CommitFailures++
		return Handle{}, fmt.Errorf("metaalloc: commit pages for [%d,%d): %w", at, at+need, err)
	}

	e.gen++
	a := &allocation{off: at, size: need, gen: e.gen, refs: 1, owner: owner}
	e.allocs.insert(a)

	if large {
		e.stats.LargeAllocs++
	}
	total := e.committed.Add(int64(need))
	if total > e.stats.PeakBytes {
		e.stats.PeakBytes = total
	}

	if e.log {
		logger.L.Debug("metaalloc: allocate",
			zap.Int("request", size),
			zap.Int("offset", at),
			zap.Int("size", need),
			zap.Stringer("owner", owner),
			zap.Bool("large", large),
		)
	}

	return a.handle(), nil
}

// Retain adds an owner to a live allocation.
func (e *Engine) Retain(h Handle) error {
	a, err := e.lookup(h)
	if err != nil {
		return err
	}
	a.refs++
	return nil
}

// Release drops one owner. When the last owner releases, the range is freed,
// coalesced with its free neighbors, and freed is true.
func (e *Engine) Release(h Handle) (freed bool, err error) {
	e.stats.ReleaseCalls++
	a, err := e.lookup(h)
	if err != nil {
		return false, err
	}
	a.refs--
	if a.refs > 0 {
		return false, nil
	}

	e.stats.FreeCalls++
	e.allocs.remove(a.off)
	e.freeRange(a.off, a.size)
	e.decommitRange(a.off, a.size)
	e.committed.Sub(int64(a.size))

	if e.log {
		logger.L.Debug("metaalloc: free",
			zap.Int("offset", a.off),
			zap.Int("size", a.size),
			zap.Stringer("owner", a.owner),
		)
	}
	return true, nil
}

// Find returns the live allocation containing off.
func (e *Engine) Find(off int) (Info, bool) {
	a := e.allocs.containing(off)
	if a == nil {
		return Info{}, false
	}
	return a.info(), true
}

// Lookup returns the live allocation named by h.
func (e *Engine) Lookup(h Handle) (Info, error) {
	a, err := e.lookup(h)
	if err != nil {
		return Info{}, err
	}
	return a.info(), nil
}

// CommittedBytes returns the live sum of allocated bytes. Safe to call without the lock.
func (e *Engine) CommittedBytes() int64 {
	return e.committed.Load()
}

// FreeRanges returns the free ranges ordered by offset.
func (e *Engine) FreeRanges() []Range {
	out := make([]Range, 0, len(e.byOff))
	for off := range e.byOff {
		out = append(out, Range{Off: off, Len: e.byOff[off].size})
	}
	sortRanges(out)
	return out
}

// AllocatedRanges returns the allocated ranges ordered by offset.
func (e *Engine) AllocatedRanges() []Range {
	out := make([]Range, 0, e.allocs.len())
	for _, a := range e.allocs.items {
		out = append(out, Range{Off: a.off, Len: a.size})
	}
	return out
}

// Allocations returns every live allocation ordered by offset.
func (e *Engine) Allocations() []Info {
	out := make([]Info, 0, e.allocs.len())
	for _, a := range e.allocs.items {
		out = append(out, a.info())
	}
	return out
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	return Stats{
		AllocCalls:         s.AllocCalls,
		AllocFailures:      s.AllocFailures,
		LargeAllocs:        s.LargeAllocs,
		ReleaseCalls:       s.ReleaseCalls,
		FreeCalls:          s.FreeCalls,
		Splits:             s.Splits,
		CoalesceForward:    s.CoalesceForward,
		CoalesceBackward:   s.CoalesceBackward,
		CommitCalls:        s.CommitCalls,
		DecommitCalls:      s.DecommitCalls,
		CommitFailures:     s.CommitFailures,
		DecommitFailures:   s.DecommitFailures,
		BytesReserved:      int64(e.size),
		BytesAllocated:     e.committed.Load(),
		PeakBytesAllocated: s.PeakBytes,
		PagesCommitted:     e.pages.committed,
		LiveAllocations:    e.allocs.len(),
		FreeRanges:         len(e.byOff),
		LargestFreeRange:   e.largestFree(),
	}
}

// ============================================================================
// Internal helpers
// ============================================================================

func (e *Engine) lookup(h Handle) (*allocation, error) {
	if h.IsZero() {
		return nil, ErrStaleHandle
	}
	a := e.allocs.at(h.Offset)
	if a == nil || a.gen != h.Gen || a.size != h.Size {
		return nil, ErrStaleHandle
	}
	return a, nil
}

// takeBestFit removes and returns the smallest free cell of at least need bytes.
// Classes above the request's class only hold larger cells, so the first
// class that yields a fit yields the global best fit.
func (e *Engine) takeBestFit(need int) *freeCell {
	for sc := e.sizeTable.getSizeClass(need); sc < len(e.freeLists); sc++ {
		if cell := e.allocFromSizeClass(sc, need); cell != nil {
			return cell
		}
	}
	return nil
}

// allocFromSizeClass returns the smallest cell >= need in class sc, or nil.
//
// Fast path: heap[0] is the smallest cell; if it fits, it is the best fit.
// Slow path: a class spans a size range, so a smaller heap[0] does not rule
// out larger members. Scan for the best fitting one.
func (e *Engine) allocFromSizeClass(sc int, need int) *freeCell {
	h := &e.freeLists[sc]
	if h.Len() == 0 {
		return nil
	}
	if (*h)[0].size >= need {
		cell := heap.Pop(h).(*freeCell) //nolint:errcheck // heap holds *freeCell only
		e.unindex(cell)
		return cell
	}

	var best *freeCell
	for _, c := range *h {
		if c.size >= need && (best == nil || c.better(best)) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	heap.Remove(h, best.heapIndex)
	e.unindex(best)
	return best
}

// takeAligned removes the best-fitting cell that can hold need bytes at an
// offset aligned to alignment, and returns it with the aligned offset.
func (e *Engine) takeAligned(need, alignment int) (*freeCell, int) {
	var best *freeCell
	bestAt := 0
	for sc := e.sizeTable.getSizeClass(need); sc < len(e.freeLists); sc++ {
		for _, c := range e.freeLists[sc] {
			at := align.Up(c.off, alignment)
			if at+need > c.end() {
				continue
			}
			if best == nil || c.better(best) {
				best, bestAt = c, at
			}
		}
	}
	if best == nil {
		return nil, 0
	}
	heap.Remove(&e.freeLists[best.sc], best.heapIndex)
	e.unindex(best)
	return best, bestAt
}

// freeRange returns [off, off+size) to the free lists, merging with a free
// neighbor on either side.
func (e *Engine) freeRange(off, size int) {
	// Forward: a free cell starting exactly at our end
	if next, ok := e.byOff[off+size]; ok {
		e.stats.CoalesceForward++
		e.removeFreeCell(next)
		size += next.size
	}

	// Backward: a free cell ending exactly at our start
	if prevOff, ok := e.byEnd[off]; ok {
		prev := e.byOff[prevOff]
		e.stats.CoalesceBackward++
		e.removeFreeCell(prev)
		off = prevOff
		size += prev.size
	}

	e.insertFreeCell(off, size)
}

// insertFreeCell adds a free range without coalescing.
func (e *Engine) insertFreeCell(off, size int) {
	sc := e.sizeTable.getSizeClass(size)
	cell := &freeCell{off: off, size: size, sc: sc}
	heap.Push(&e.freeLists[sc], cell)
	e.byOff[off] = cell
	e.byEnd[off+size] = off
}

// removeFreeCell removes an indexed free cell from its heap and the indexes.
func (e *Engine) removeFreeCell(cell *freeCell) {
	heap.Remove(&e.freeLists[cell.sc], cell.heapIndex)
	e.unindex(cell)
}

func (e *Engine) unindex(cell *freeCell) {
	delete(e.byOff, cell.off)
	delete(e.byEnd, cell.end())
}

// largestFree scans every class for the largest free cell. O(n); used for
// stats and diagnostics only.
func (e *Engine) largestFree() int {
	largest := 0
	for sc := len(e.freeLists) - 1; sc >= 0; sc-- {
		for _, c := range e.freeLists[sc] {
			if c.size > largest {
				largest = c.size
			}
		}
		if largest > 0 {
			// Cells in lower classes are all smaller.
			return largest
		}
	}
	return largest
}
