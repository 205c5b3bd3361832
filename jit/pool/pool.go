package pool

import (
	"fmt"
	"unsafe"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/align"
	"github.com/joshuapare/execalloc/internal/logger"
	"github.com/joshuapare/execalloc/internal/vmem"
)

// Mode selects how the reservation is mapped.
type Mode int

const (
	// MapPrivate is an anonymous private reservation committed page by page.
	MapPrivate Mode = iota

	// MapDualShared maps a shared memory object twice (exec view + write alias).
	MapDualShared
)

func (m Mode) String() string {
	switch m {
	case MapPrivate:
		return "private"
	case MapDualShared:
		return "dual-shared"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options configures a reservation.
type Options struct {
	// Size of the pool in bytes. Rounded up to the page size.
	Size int

	// Mode selects the mapping layout.
	Mode Mode

	// Prot is the protection given to committed pages in MapPrivate mode.
	// Zero means read+execute.
	Prot vmem.Prot

	// Keyed commits pages with protection key PKey (Linux only).
	Keyed bool
	PKey  int
}

// Pool is one fixed reservation. Its address range never moves.
type Pool struct {
	mem      []byte // exec view, the addresses handed out
	shared   *vmem.SharedMapping
	bounds   Bounds
	pageSize int
	opts     Options

	committedPages atomic.Int64
	released       atomic.Bool
}

// Reserve maps a new pool.
func Reserve(opts Options) (*Pool, error) {
	pageSize := vmem.PageSize()
	if opts.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrReservationFailed, opts.Size)
	}
	opts.Size = align.Up(opts.Size, pageSize)
	if opts.Prot == vmem.ProtNone {
		opts.Prot = vmem.ProtRX
	}

	p := &Pool{pageSize: pageSize, opts: opts}

	switch opts.Mode {
	case MapPrivate:
		mem, err := vmem.Reserve(opts.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReservationFailed, err)
		}
		p.mem = mem
	case MapDualShared:
		m, err := vmem.ReserveShared(opts.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReservationFailed, err)
		}
		p.shared = m
		p.mem = m.Exec
	default:
		return nil, fmt.Errorf("%w: unknown mode %v", ErrReservationFailed, opts.Mode)
	}

	start := uintptr(unsafe.Pointer(unsafe.SliceData(p.mem)))
	p.bounds = Bounds{Start: start, End: start + uintptr(len(p.mem))}

	logger.L.Info("reserved executable pool",
		zap.Uintptr("start", p.bounds.Start),
		zap.Uintptr("end", p.bounds.End),
		zap.Int("size", opts.Size),
		zap.Stringer("mode", opts.Mode),
		zap.Stringer("prot", opts.Prot),
	)
	return p, nil
}

// Bounds returns the immutable address range of the pool.
func (p *Pool) Bounds() Bounds {
	return p.bounds
}

// Size returns the pool size in bytes.
func (p *Pool) Size() int {
	return len(p.mem)
}

// PageSize returns the page size used for commit granularity.
func (p *Pool) PageSize() int {
	return p.pageSize
}

// Mode returns the mapping mode.
func (p *Pool) Mode() Mode {
	return p.opts.Mode
}

// Prot returns the protection of committed pages in MapPrivate mode.
func (p *Pool) Prot() vmem.Prot {
	return p.opts.Prot
}

// Offset converts an address into an offset from the pool start.
func (p *Pool) Offset(addr uintptr) (int, bool) {
	if !p.bounds.Contains(addr) {
		return 0, false
	}
	return int(addr - p.bounds.Start), true
}

// Addr converts an offset into an address.
func (p *Pool) Addr(off int) uintptr {
	return p.bounds.Start + uintptr(off)
}

// Slice returns the executable view of [off, off+n).
func (p *Pool) Slice(off, n int) []byte {
	return p.mem[off : off+n : off+n]
}

// WritableAlias returns the read+write view of [off, off+n) in MapDualShared
// mode, or nil otherwise.
func (p *Pool) WritableAlias(off, n int) []byte {
	if p.shared == nil {
		return nil
	}
	return p.shared.Write[off : off+n : off+n]
}

// CommitPages backs count pages starting at page index first.
func (p *Pool) CommitPages(first, count int) error {
	b, err := p.pages(first, count)
	if err != nil {
		return err
	}
	switch {
	case p.shared != nil:
		// memfd pages are allocated on first touch.
	case p.opts.Keyed:
		if err := vmem.CommitKeyed(b, p.opts.Prot, p.opts.PKey); err != nil {
			return err
		}
	default:
		if err := vmem.Commit(b, p.opts.Prot); err != nil {
			return err
		}
	}
	p.committedPages.Add(int64(count))
	return nil
}

// DecommitPages drops the backing of count pages starting at page index first.
func (p *Pool) DecommitPages(first, count int) error {
	b, err := p.pages(first, count)
	if err != nil {
		return err
	}
	if p.shared != nil {
		err = p.shared.Decommit(first*p.pageSize, count*p.pageSize)
	} else {
		err = vmem.Decommit(b)
	}
	if err != nil {
		return err
	}
	p.committedPages.Sub(int64(count))
	return nil
}

// CommittedPages returns the number of currently backed pages.
func (p *Pool) CommittedPages() int {
	return int(p.committedPages.Load())
}

// Protect changes the protection of the pages overlapping [off, off+n).
func (p *Pool) Protect(off, n int, prot vmem.Prot) error {
	if off < 0 || n <= 0 || off+n > len(p.mem) {
		return ErrOutOfRange
	}
	start := align.Down(off, p.pageSize)
	end := align.Up(off+n, p.pageSize)
	return vmem.Protect(p.mem[start:end], prot)
}

// Release unmaps the pool. The process-wide pool is never released.
func (p *Pool) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if p.shared != nil {
		err = multierr.Append(err, p.shared.Close())
	} else {
		err = multierr.Append(err, vmem.Release(p.mem))
	}
	p.mem = nil
	return err
}

func (p *Pool) pages(first, count int) ([]byte, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}
	if first < 0 || count <= 0 {
		return nil, ErrOutOfRange
	}
	start := first * p.pageSize
	end := start + count*p.pageSize
	if end > len(p.mem) {
		return nil, fmt.Errorf("%w: pages [%d,%d) of %d", ErrOutOfRange, first, first+count, len(p.mem)/p.pageSize)
	}
	return p.mem[start:end], nil
}
