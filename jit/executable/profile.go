package executable

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/execalloc/jit/metaalloc"
)

// Stats is a snapshot of allocator statistics.
type Stats struct {
	Valid  bool
	Writer string

	Allocations        int64
	Releases           int64
	OutOfMemory        int64
	PressureRejections int64
	Fuzzed             int64
	MustSucceedFailed  int64
	PoolWrites         int64
	PlainWrites        int64
	BytesWritten       int64

	CommittedBytes int64
	PoolSize       int
	PagesCommitted int

	Engine metaalloc.Stats
}

// Stats returns allocator and engine statistics.
func (a *Allocator) Stats() Stats {
	s := Stats{
		Valid:              a.IsValid(),
		Writer:             a.WriterName(),
		Allocations:        a.stats.allocations.Load(),
		Releases:           a.stats.releases.Load(),
		OutOfMemory:        a.stats.outOfMemory.Load(),
		PressureRejections: a.stats.pressureRejections.Load(),
		Fuzzed:             a.stats.fuzzed.Load(),
		MustSucceedFailed:  a.stats.mustSucceedFailed.Load(),
		PoolWrites:         a.stats.poolWrites.Load(),
		PlainWrites:        a.stats.plainWrites.Load(),
		BytesWritten:       a.stats.bytesWritten.Load(),
	}
	if !s.Valid {
		return s
	}

	held := a.lock.Acquire()
	defer held.Release()
	s.CommittedBytes = a.engine.CommittedBytes()
	s.PoolSize = a.pool.Size()
	s.PagesCommitted = a.pool.CommittedPages()
	s.Engine = a.engine.Stats()
	return s
}

// DumpProfile writes the allocator statistics and the free-list layout to w.
// It takes the lock but changes no allocation state.
func (a *Allocator) DumpProfile(w io.Writer) error {
	p := message.NewPrinter(language.English)
	s := a.Stats()

	if !s.Valid {
		_, err := p.Fprintf(w, "executable allocator: invalid (%v)\n", a.Err())
		return err
	}

	b := a.Bounds()
	if _, err := p.Fprintf(w,
		"executable allocator: [%#x,%#x) writer=%s\n"+
			"  committed %d of %d bytes, %d pages backed\n"+
			"  allocations %d, releases %d\n"+
			"  failures: %d out of memory, %d pressure, %d fuzzed, %d must-succeed\n"+
			"  writes: %d pool (%d bytes), %d plain\n",
		b.Start, b.End, s.Writer,
		s.CommittedBytes, s.PoolSize, s.PagesCommitted,
		s.Allocations, s.Releases,
		s.OutOfMemory, s.PressureRejections, s.Fuzzed, s.MustSucceedFailed,
		s.PoolWrites, s.BytesWritten, s.PlainWrites,
	); err != nil {
		return err
	}

	held := a.lock.Acquire()
	defer held.Release()
	if err := a.engine.Dump(w); err != nil {
		return err
	}
	return a.engine.DumpRanges(w)
}

// CheckInvariants verifies the free-list state under the lock.
func (a *Allocator) CheckInvariants() error {
	if !a.IsValid() {
		return ErrInvalidAllocator
	}
	held := a.lock.Acquire()
	defer held.Release()
	return a.engine.CheckInvariants()
}

// Geometry describes how the pool is carved.
type Geometry struct {
	PageSize       int
	Granule        int
	LargeThreshold int
}

// Geometry returns the pool carving parameters, or zero if invalid.
func (a *Allocator) Geometry() Geometry {
	if !a.IsValid() {
		return Geometry{}
	}
	return Geometry{
		PageSize:       a.engine.PageSize(),
		Granule:        a.engine.Granule(),
		LargeThreshold: a.engine.LargeThreshold(),
	}
}
