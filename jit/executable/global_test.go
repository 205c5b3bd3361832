//go:build unix

package executable

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The process-wide allocator can be initialized once per test binary, so
// its whole lifecycle is exercised in one test.
func Test_Singleton_Lifecycle(t *testing.T) {
	require.False(t, IsInitialized())
	require.False(t, IsValid())
	require.PanicsWithValue(t, ErrNotInitialized, func() { Singleton() })

	// Before Initialize there is no pool and writes are plain copies.
	scratch := make([]byte, len(testCode))
	_, err := PerformJITMemcpy(unsafe.Pointer(&scratch[0]), testCode)
	require.NoError(t, err)
	assert.Equal(t, testCode, scratch)

	require.Error(t, SetSeparateHeapWriter(nil))

	require.NoError(t, Initialize(testConfig("mprotect")))
	require.ErrorIs(t, Initialize(testConfig("mprotect")), ErrAlreadyInitialized)
	require.ErrorIs(t, SetSeparateHeapWriter(func(uintptr, []byte) {}), ErrAlreadyInitialized)

	a := Singleton()
	require.True(t, IsValid())
	require.ErrorIs(t, a.Close(), ErrSingletonClose)

	b := a.Bounds()
	assert.True(t, IsJITPC(b.Start))
	assert.True(t, IsJITPC(b.End-1))
	assert.False(t, IsJITPC(b.Start-1))
	assert.False(t, IsJITPC(b.End))
	assert.False(t, IsJITPC(uintptr(unsafe.Pointer(&scratch[0]))))

	m, err := Allocate(100, 9, EffortQuick)
	require.NoError(t, err)
	assert.EqualValues(t, 128, CommittedByteCount())
	assert.False(t, UnderMemoryPressure())
	assert.GreaterOrEqual(t, MemoryPressureMultiplier(0), 1.0)

	_, err = PerformJITMemcpy(m.Pointer(), testCode)
	require.NoError(t, err)

	held := GetLock().Acquire()
	assert.True(t, IsValidExecutableMemory(held, m.Start()+4))
	held.Release()

	var sb strings.Builder
	require.NoError(t, DumpProfile(&sb))
	assert.Contains(t, sb.String(), "owner:0x9")

	require.NoError(t, m.Release())
	assert.Zero(t, CommittedByteCount())
}
