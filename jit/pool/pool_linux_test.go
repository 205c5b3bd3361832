//go:build linux

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/execalloc/internal/vmem"
)

func Test_Pool_DualSharedAlias(t *testing.T) {
	ps := vmem.PageSize()
	p, err := Reserve(Options{Size: 2 * ps, Mode: MapDualShared})
	if err != nil {
		t.Skipf("dual mapping unavailable: %v", err)
	}
	defer func() {
		require.NoError(t, p.Release())
	}()

	require.NoError(t, p.CommitPages(0, 1))
	copy(p.WritableAlias(64, 4), []byte{1, 2, 3, 4})
	require.Equal(t, []byte{1, 2, 3, 4}, p.Slice(64, 4))

	require.NoError(t, p.DecommitPages(0, 1))
	require.Equal(t, []byte{0, 0, 0, 0}, p.Slice(64, 4))
	require.Equal(t, 0, p.CommittedPages())
}

func Test_Pool_PrivateHasNoAlias(t *testing.T) {
	p, err := Reserve(Options{Size: vmem.PageSize()})
	require.NoError(t, err)
	defer p.Release()
	require.Nil(t, p.WritableAlias(0, 1))
}
