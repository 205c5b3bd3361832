package executable

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/logger"
	"github.com/joshuapare/execalloc/internal/ptrtag"
	"github.com/joshuapare/execalloc/jit/icache"
	"github.com/joshuapare/execalloc/jit/metaalloc"
	"github.com/joshuapare/execalloc/jit/pool"
	"github.com/joshuapare/execalloc/jit/pressure"
	"github.com/joshuapare/execalloc/jit/protect"
)

// Effort classifies how much the caller needs an allocation to succeed.
type Effort = pressure.Effort

const (
	EffortQuick = pressure.EffortQuick
	EffortFull  = pressure.EffortFull
)

// OwnerID attributes an allocation to its requester in logs and dumps.
type OwnerID = metaalloc.OwnerID

// Allocator hands out executable memory from one fixed pool.
type Allocator struct {
	lock Lock

	valid  atomic.Bool
	closed atomic.Bool
	err    error // why the allocator is invalid

	pool   *pool.Pool
	engine *metaalloc.Engine
	writer protect.Writer
	policy pressure.Policy
	flush  func(addr uintptr, n int)

	fuzzEvery int
	fuzzCount int // under lock
	logAlloc  bool
	singleton bool

	stats counters
}

// counters are facade statistics. Updated atomically so Stats can read them
// without the lock.
type counters struct {
	allocations        atomic.Int64
	releases           atomic.Int64
	outOfMemory        atomic.Int64
	pressureRejections atomic.Int64
	fuzzed             atomic.Int64
	mustSucceedFailed  atomic.Int64
	poolWrites         atomic.Int64
	plainWrites        atomic.Int64
	bytesWritten       atomic.Int64
}

// New creates an allocator with its own pool. It never fails: when the pool
// cannot be reserved, the allocator is returned invalid and every
// allocation fails with ErrInvalidAllocator. Err reports why.
func New(cfg Config) *Allocator {
	return newAllocator(cfg, loadSeparateHeapWriter())
}

func newAllocator(cfg Config, thunk protect.SeparateHeapFunc) *Allocator {
	a := &Allocator{flush: icache.Flush}
	if err := cfg.Validate(); err != nil {
		a.invalidate(err)
		return a
	}
	cfg = cfg.withDefaults()

	a.policy = cfg.policy()
	a.fuzzEvery = cfg.AllocationFuzzEvery
	a.logAlloc = cfg.LogAllocations || logger.AllocLoggingFromEnv()

	if cfg.SeparateHeapWriter != nil {
		thunk = cfg.SeparateHeapWriter
	}
	reserve := cfg.Reserve
	if reserve == nil {
		reserve = pool.Reserve
	}

	mode, _ := protect.ParseMode(cfg.WriteMode) //nolint:errcheck // validated above
	writer, pl, err := protect.Select(protect.Candidates(mode, cfg.PoolSize, thunk), reserve)
	if err != nil {
		a.invalidate(fmt.Errorf("%w: %w", pool.ErrReservationFailed, err))
		return a
	}

	classes, _ := metaalloc.SizeClassesByName(cfg.SizeClasses)
	engine, err := metaalloc.New(pl.Size(), metaalloc.Config{
		PageSize:       pl.PageSize(),
		SizeClasses:    &classes,
		Committer:      pl,
		LogAllocations: a.logAlloc,
	})
	if err != nil {
		_ = pl.Release()
		a.invalidate(err)
		return a
	}

	a.pool, a.engine, a.writer = pl, engine, writer
	a.valid.Store(true)
	return a
}

func (a *Allocator) invalidate(err error) {
	a.err = err
	a.valid.Store(false)
	logger.L.Error("executable allocator unavailable", zap.Error(err))
}

// IsValid reports whether the pool was reserved. Lock free.
func (a *Allocator) IsValid() bool {
	return a.valid.Load()
}

// Err returns why the allocator is invalid, or nil.
func (a *Allocator) Err() error {
	if a.IsValid() {
		return nil
	}
	if a.closed.Load() {
		return ErrInvalidAllocator
	}
	return a.err
}

// GetLock returns the lock guarding the allocator.
func (a *Allocator) GetLock() *Lock {
	return &a.lock
}

// Bounds returns the pool address range, or zero bounds if invalid.
func (a *Allocator) Bounds() pool.Bounds {
	if a.pool == nil {
		return pool.Bounds{}
	}
	return a.pool.Bounds()
}

// WriterName names the selected write strategy.
func (a *Allocator) WriterName() string {
	if a.writer == nil {
		return string(protect.ModeNone)
	}
	return a.writer.Name()
}

// Allocate returns memory for size bytes. The pressure policy runs first and
// a rejection never reaches the engine. Full-effort failures are logged at
// error level.
func (a *Allocator) Allocate(size int, owner OwnerID, effort Effort) (*Memory, error) {
	if !a.IsValid() {
		return nil, ErrInvalidAllocator
	}
	if size <= 0 {
		return nil, metaalloc.ErrZeroSize
	}

	held := a.lock.Acquire()
	defer held.Release()
	if !a.IsValid() {
		return nil, ErrInvalidAllocator
	}

	if effort == EffortQuick && a.fuzzEvery > 0 {
		a.fuzzCount++
		if a.fuzzCount%a.fuzzEvery == 0 {
			a.stats.fuzzed.Inc()
			return nil, ErrFuzzed
		}
	}

	d := a.policy.Decide(a.usage(), int64(a.engine.RoundedSize(size)), effort)
	if !d.Accept {
		a.stats.pressureRejections.Inc()
		err := fmt.Errorf("%w: %s", ErrPressureRejected, d.Reason)
		a.reportFailure(size, owner, effort, err)
		return nil, err
	}

	h, err := a.engine.Allocate(size, owner)
	if err != nil {
		if errors.Is(err, metaalloc.ErrOutOfPoolMemory) {
			a.stats.outOfMemory.Inc()
		}
		err = fmt.Errorf("executable: allocate %d bytes: %w", size, err)
		a.reportFailure(size, owner, effort, err)
		return nil, err
	}

	a.stats.allocations.Inc()
	return &Memory{
		alloc:  a,
		handle: h,
		owner:  owner,
		effort: effort,
		start:  a.pool.Addr(h.Offset),
	}, nil
}

func (a *Allocator) reportFailure(size int, owner OwnerID, effort Effort, err error) {
	if effort != EffortFull {
		if a.logAlloc {
			logger.L.Debug("executable allocation failed",
				zap.Int("size", size), zap.Stringer("owner", owner), zap.Error(err))
		}
		return
	}
	a.stats.mustSucceedFailed.Inc()
	logger.L.Error("must-succeed executable allocation failed",
		zap.Int("size", size),
		zap.Stringer("owner", owner),
		zap.Int64("allocated", a.engine.CommittedBytes()),
		zap.Int("reserved", a.engine.Size()),
		zap.Error(err),
	)
}

// IsValidExecutableMemory reports whether addr lies inside a live
// allocation. held must prove the allocator's lock; anything else panics.
func (a *Allocator) IsValidExecutableMemory(held Held, addr uintptr) bool {
	held.mustProve(&a.lock)
	if !a.IsValid() {
		return false
	}
	off, ok := a.pool.Offset(ptrtag.Untag(addr))
	if !ok {
		return false
	}
	_, found := a.engine.Find(off)
	return found
}

// CommittedByteCount returns the bytes currently allocated. Lock free.
func (a *Allocator) CommittedByteCount() int64 {
	if !a.IsValid() {
		return 0
	}
	return a.engine.CommittedBytes()
}

// UnderMemoryPressure reports whether the pool is more than half allocated
// or the system is low on memory.
func (a *Allocator) UnderMemoryPressure() bool {
	if !a.IsValid() {
		return false
	}
	return a.policy.UnderPressure(a.usage())
}

// MemoryPressureMultiplier returns a factor of at least 1 by which a caller
// may scale the cost of adding added bytes of code.
func (a *Allocator) MemoryPressureMultiplier(added int) float64 {
	if !a.IsValid() {
		return 1
	}
	return a.policy.Multiplier(a.usage(), int64(added))
}

func (a *Allocator) usage() pressure.Usage {
	return pressure.Usage{
		Allocated: a.engine.CommittedBytes(),
		Reserved:  int64(a.engine.Size()),
	}
}

// Close unmaps the pool of an allocator created with New. Live Memory
// values become unusable. The process-wide allocator cannot be closed.
func (a *Allocator) Close() error {
	if a.singleton {
		return ErrSingletonClose
	}
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	held := a.lock.Acquire()
	defer held.Release()

	a.valid.Store(false)
	if a.pool == nil {
		return nil
	}
	return a.pool.Release()
}
