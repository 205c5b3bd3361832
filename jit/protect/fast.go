package protect

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/joshuapare/execalloc/internal/vmem"
	"github.com/joshuapare/execalloc/jit/pool"
)

// FastPermissions owns one memory protection key. Pool pages tagged with the
// key are read+write+execute in the page tables, but threads are denied
// data access to them except inside Do.
type FastPermissions struct {
	key    int
	closed atomic.Bool
}

// Key returns the protection key for tagging pool pages.
func (f *FastPermissions) Key() int {
	return f.key
}

// PoolOptions returns the reservation options for a pool of size bytes
// whose pages carry the key.
func (f *FastPermissions) PoolOptions(size int) pool.Options {
	return pool.Options{
		Size:  size,
		Mode:  pool.MapPrivate,
		Prot:  vmem.ProtRWX,
		Keyed: true,
		PKey:  f.key,
	}
}

// Close releases the key. Pages still tagged with it keep the tag.
func (f *FastPermissions) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return vmem.FreeKey(f.key)
}

// Bind returns the writer for a pool reserved with PoolOptions.
func (f *FastPermissions) Bind(p *pool.Pool) Writer {
	return &fastWriter{perm: f, pool: p}
}

type fastWriter struct {
	perm *FastPermissions
	pool *pool.Pool
}

func (w *fastWriter) Name() string { return string(ModeFast) }

// WriteIntoRegion implements Writer.
func (w *fastWriter) WriteIntoRegion(off uintptr, src []byte) error {
	if err := w.check(off, len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	dst := w.pool.Slice(int(off), len(src))
	w.perm.Do(func() { copy(dst, src) })
	return nil
}

// ReadRegion implements Reader.
func (w *fastWriter) ReadRegion(off uintptr, dst []byte) error {
	if err := w.check(off, len(dst)); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	src := w.pool.Slice(int(off), len(dst))
	w.perm.Do(func() { copy(dst, src) })
	return nil
}

func (w *fastWriter) check(off uintptr, n int) error {
	size := uintptr(w.pool.Size())
	if off > size || uintptr(n) > size-off {
		return fmt.Errorf("%w: [%#x,+%d) of %#x", ErrOutOfRange, off, n, size)
	}
	return nil
}
