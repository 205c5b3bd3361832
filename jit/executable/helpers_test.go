//go:build unix

package executable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/joshuapare/execalloc/internal/logger"
	"github.com/joshuapare/execalloc/jit/pressure"
)

const testPoolSize = 1 << 20

// plentyOfMemory keeps host memory pressure out of tests.
var plentyOfMemory = pressure.Signal{TotalBytes: 1 << 40, AvailableBytes: 1 << 40}

func testConfig(mode string) Config {
	cfg := Default()
	cfg.PoolSize = testPoolSize
	cfg.WriteMode = mode
	cfg.PressureSource = pressure.NewStaticSource(plentyOfMemory)
	return cfg
}

func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	a := New(cfg)
	require.True(t, a.IsValid(), "allocator invalid: %v", a.Err())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustAllocate(t *testing.T, a *Allocator, size int, effort Effort) *Memory {
	t.Helper()
	m, err := a.Allocate(size, OwnerID(size), effort)
	require.NoError(t, err)
	return m
}

// observeLogs routes the global logger into an observer for the test.
func observeLogs(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })
	return logs
}

// recordFlushes replaces the instruction cache flush with a recorder.
func recordFlushes(a *Allocator) *[][2]uintptr {
	var got [][2]uintptr
	a.flush = func(addr uintptr, n int) {
		got = append(got, [2]uintptr{addr, uintptr(n)})
	}
	return &got
}
