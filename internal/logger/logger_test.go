package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func Test_Logger_InitDisabledIsNop(t *testing.T) {
	require.NoError(t, Init(Options{Enabled: false}))
	require.False(t, L.Core().Enabled(zap.ErrorLevel))
}

func Test_Logger_SetCapturesEntries(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	L.Info("reserved", zap.Int("bytes", 4096))
	require.Equal(t, 1, logs.Len())
	require.Equal(t, int64(4096), logs.All()[0].ContextMap()["bytes"])
}

func Test_Logger_AllocLoggingFromEnv(t *testing.T) {
	t.Setenv(AllocLogEnv, "")
	require.False(t, AllocLoggingFromEnv())
	t.Setenv(AllocLogEnv, "1")
	require.True(t, AllocLoggingFromEnv())
}
