//go:build unix

package executable

import (
	"runtime/debug"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/execalloc/jit/protect"
)

func Test_Memory_BytesAfterReleaseIsStale(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	// Large enough to own whole pages, so the last release decommits them.
	m := mustAllocate(t, a, a.Geometry().LargeThreshold, EffortFull)
	require.NoError(t, m.Retain())

	require.NoError(t, m.Release())
	_, err := m.Bytes()
	require.NoError(t, err, "one owner remains")

	require.NoError(t, m.Release())
	assert.Zero(t, a.Stats().PagesCommitted)
	_, err = m.Bytes()
	require.ErrorIs(t, err, ErrStaleHandle)
}

func Test_Memory_BytesRacingFinalRelease(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	size := a.Geometry().LargeThreshold

	for range 50 {
		m := mustAllocate(t, a, size, EffortFull)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
			for range 20 {
				if _, err := m.Bytes(); err != nil {
					assert.ErrorIs(t, err, ErrStaleHandle)
					return
				}
			}
		}()
		require.NoError(t, m.Release())
		wg.Wait()
	}
	require.NoError(t, a.CheckInvariants())
}

func Test_PerformJITMemcpy_RejectsUnallocatedDestination(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	page := a.Geometry().PageSize
	m := mustAllocate(t, a, 64, EffortQuick)
	committed := a.Stats().PagesCommitted

	tests := []struct {
		name string
		dst  unsafe.Pointer
	}{
		{"free granule after the allocation", unsafe.Add(m.Pointer(), 64)},
		{"crossing the allocation end", unsafe.Add(m.Pointer(), 64-4)},
		{"decommitted page", unsafe.Add(m.Pointer(), 8*page)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.PerformJITMemcpy(tt.dst, testCode)
			require.ErrorIs(t, err, ErrNotAllocated)
			require.ErrorIs(t, err, protect.ErrOutOfRange)
		})
	}

	s := a.Stats()
	assert.Equal(t, committed, s.PagesCommitted, "rejected writes must not commit pages")
	assert.Zero(t, s.PoolWrites)

	ptr := m.Pointer()
	require.NoError(t, m.Release())
	_, err := a.PerformJITMemcpy(ptr, testCode)
	require.ErrorIs(t, err, ErrNotAllocated)
	assert.Zero(t, a.Stats().PagesCommitted)
	require.NoError(t, a.CheckInvariants())
}
