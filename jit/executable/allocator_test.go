//go:build unix

package executable

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/joshuapare/execalloc/jit/metaalloc"
	"github.com/joshuapare/execalloc/jit/pool"
	"github.com/joshuapare/execalloc/jit/pressure"
)

func Test_Allocator_AllocateRelease(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	assert.Equal(t, "mprotect", a.WriterName())

	m, err := a.Allocate(100, 42, EffortQuick)
	require.NoError(t, err)
	assert.Equal(t, 128, m.Size())
	assert.Equal(t, OwnerID(42), m.Owner())
	assert.Equal(t, EffortQuick, m.Effort())
	assert.True(t, a.Bounds().Contains(m.Start()))
	assert.True(t, m.Contains(m.End()-1))
	assert.False(t, m.Contains(m.End()))
	assert.EqualValues(t, 128, a.CommittedByteCount())

	require.NoError(t, m.Release())
	assert.Zero(t, a.CommittedByteCount())
	require.ErrorIs(t, m.Release(), ErrStaleHandle)
}

func Test_Allocator_RetainKeepsRangeAlive(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	m := mustAllocate(t, a, 64, EffortFull)
	require.NoError(t, m.Retain())

	require.NoError(t, m.Release())
	assert.EqualValues(t, 64, a.CommittedByteCount())
	require.NoError(t, m.Release())
	assert.Zero(t, a.CommittedByteCount())
	assert.EqualValues(t, 1, a.Stats().Releases)
}

func Test_Allocator_RejectsZeroSize(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	_, err := a.Allocate(0, 1, EffortQuick)
	require.ErrorIs(t, err, metaalloc.ErrZeroSize)
}

func Test_Allocator_InvalidWhenReservationFails(t *testing.T) {
	cfg := testConfig("mprotect")
	cfg.Reserve = func(pool.Options) (*pool.Pool, error) {
		return nil, errors.New("mapping denied")
	}
	a := New(cfg)

	assert.False(t, a.IsValid())
	require.ErrorIs(t, a.Err(), pool.ErrReservationFailed)
	_, err := a.Allocate(64, 1, EffortFull)
	require.ErrorIs(t, err, ErrInvalidAllocator)
	assert.Zero(t, a.CommittedByteCount())
	assert.False(t, a.UnderMemoryPressure())
	assert.Equal(t, 1.0, a.MemoryPressureMultiplier(64))

	var buf bytes.Buffer
	require.NoError(t, a.DumpProfile(&buf))
	assert.Contains(t, buf.String(), "invalid")
	require.NoError(t, a.Close())
}

func Test_Allocator_InvalidConfig(t *testing.T) {
	cfg := testConfig("warp")
	a := New(cfg)
	assert.False(t, a.IsValid())
	assert.Error(t, a.Err())
}

func Test_Allocator_OutOfPoolMemory(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))

	big := mustAllocate(t, a, testPoolSize, EffortFull)
	_, err := a.Allocate(32, 1, EffortFull)
	require.ErrorIs(t, err, metaalloc.ErrOutOfPoolMemory)
	assert.EqualValues(t, 1, a.Stats().OutOfMemory)

	require.NoError(t, big.Release())
	mustAllocate(t, a, 32, EffortFull)
}

func Test_Allocator_PressureShortCircuitsEngine(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))

	mustAllocate(t, a, 700<<10, EffortFull)
	before := a.Stats().Engine.AllocCalls

	_, err := a.Allocate(100<<10, 1, EffortQuick)
	require.ErrorIs(t, err, ErrPressureRejected)
	assert.Equal(t, before, a.Stats().Engine.AllocCalls, "rejected request must not reach the engine")
	assert.EqualValues(t, 1, a.Stats().PressureRejections)

	// Full effort may use the reserve.
	mustAllocate(t, a, 100<<10, EffortFull)
	assert.True(t, a.UnderMemoryPressure())
	assert.Greater(t, a.MemoryPressureMultiplier(1024), 1.0)
}

func Test_Allocator_SystemPressure(t *testing.T) {
	logs := observeLogs(t, zapcore.ErrorLevel)
	src := pressure.NewStaticSource(plentyOfMemory)
	cfg := testConfig("mprotect")
	cfg.PressureSource = src
	a := newTestAllocator(t, cfg)

	src.Set(pressure.Signal{TotalBytes: 100, AvailableBytes: 5})
	_, err := a.Allocate(64, 1, EffortQuick)
	require.ErrorIs(t, err, ErrPressureRejected)
	mustAllocate(t, a, 64, EffortFull)
	assert.True(t, a.UnderMemoryPressure())

	src.Set(pressure.Signal{TotalBytes: 100, AvailableBytes: 1})
	_, err = a.Allocate(64, 7, EffortFull)
	require.ErrorIs(t, err, ErrPressureRejected)
	assert.EqualValues(t, 1, a.Stats().MustSucceedFailed)

	entries := logs.FilterMessage("must-succeed executable allocation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(64), entries[0].ContextMap()["size"])
}

func Test_Allocator_AllocationFuzzing(t *testing.T) {
	cfg := testConfig("mprotect")
	cfg.AllocationFuzzEvery = 3
	a := newTestAllocator(t, cfg)

	var failed int
	for range 9 {
		if _, err := a.Allocate(32, 1, EffortQuick); err != nil {
			require.ErrorIs(t, err, ErrFuzzed)
			require.ErrorIs(t, err, metaalloc.ErrOutOfPoolMemory)
			failed++
		}
	}
	assert.Equal(t, 3, failed)

	for range 6 {
		mustAllocate(t, a, 32, EffortFull)
	}
	assert.EqualValues(t, 3, a.Stats().Fuzzed)
}

func Test_Allocator_CloseInvalidates(t *testing.T) {
	a := New(testConfig("mprotect"))
	require.True(t, a.IsValid())
	m := mustAllocate(t, a, 64, EffortQuick)
	ptr := m.Pointer()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, a.IsValid())
	require.ErrorIs(t, a.Err(), ErrInvalidAllocator)

	_, err := a.Allocate(64, 1, EffortQuick)
	require.ErrorIs(t, err, ErrInvalidAllocator)
	require.ErrorIs(t, m.Release(), ErrInvalidAllocator)
	_, err = a.PerformJITMemcpy(ptr, []byte{1})
	require.ErrorIs(t, err, ErrInvalidAllocator)
}

func Test_Allocator_DumpProfileAndStats(t *testing.T) {
	a := newTestAllocator(t, testConfig("mprotect"))
	m := mustAllocate(t, a, 4000, EffortQuick)
	defer m.Release()

	s := a.Stats()
	assert.True(t, s.Valid)
	assert.EqualValues(t, 4000, s.CommittedBytes)
	assert.Equal(t, testPoolSize, s.PoolSize)
	assert.Positive(t, s.PagesCommitted)
	assert.Equal(t, 1, s.Engine.LiveAllocations)

	var buf bytes.Buffer
	require.NoError(t, a.DumpProfile(&buf))
	out := buf.String()
	assert.Contains(t, out, "writer=mprotect")
	assert.Contains(t, out, "committed 4,000 of 1,048,576 bytes")
	assert.Contains(t, out, "used owner:0xfa0")

	// Dumping does not change allocation state.
	assert.Equal(t, s.Engine.AllocCalls, a.Stats().Engine.AllocCalls)
}

func Test_Config_Validate(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, Config{}.Validate())

	bad := []Config{
		{PoolSize: -1},
		{WriteMode: "rwx"},
		{SizeClasses: "tiny"},
		{ReservationFraction: 1},
		{SystemPressureThreshold: 2},
		{SystemPressureThreshold: 0.1, CriticalPressureThreshold: 0.2},
		{AllocationFuzzEvery: -5},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}
	assert.Equal(t, DefaultPoolSize, Default().PoolSize)
}
