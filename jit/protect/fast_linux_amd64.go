package protect

import (
	"fmt"
	"runtime"

	"github.com/joshuapare/execalloc/internal/vmem"
)

// Implemented in pkru_amd64.s.
func readPKRU() uint32
func writePKRU(v uint32)

// NewFastPermissions allocates a protection key. It fails with
// ErrUnsupported when the CPU or kernel lacks protection keys.
func NewFastPermissions() (*FastPermissions, error) {
	k, err := vmem.AllocKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return &FastPermissions{key: k}, nil
}

// Do runs fn with data access to keyed pages opened for the calling thread
// only. The goroutine stays on its thread until the previous rights are
// restored. fn must not block.
func (f *FastPermissions) Do(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	old := readPKRU()
	writePKRU(old &^ (3 << (2 * uint(f.key))))
	defer writePKRU(old)

	fn()
}
