package pressure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = 1 << 30

func testPolicy(src Source) Policy {
	p := DefaultPolicy()
	p.Source = src
	return p
}

type failingSource struct{}

func (failingSource) Sample() (Signal, error) {
	return Signal{}, errors.New("no signal")
}

func Test_Signal_AvailableFraction(t *testing.T) {
	assert.Equal(t, 1.0, Signal{}.AvailableFraction())
	assert.Equal(t, 0.25, Signal{TotalBytes: 4 * gib, AvailableBytes: gib}.AvailableFraction())
	assert.Equal(t, 1.0, Signal{TotalBytes: gib, AvailableBytes: 2 * gib}.AvailableFraction())
}

func Test_Policy_UnderPressure(t *testing.T) {
	src := NewStaticSource(Signal{TotalBytes: 8 * gib, AvailableBytes: 4 * gib})
	p := testPolicy(src)

	assert.False(t, p.UnderPressure(Usage{Allocated: 512, Reserved: 1024}))
	assert.True(t, p.UnderPressure(Usage{Allocated: 513, Reserved: 1024}))

	src.Set(Signal{TotalBytes: 8 * gib, AvailableBytes: gib / 2})
	assert.True(t, p.UnderPressure(Usage{Allocated: 0, Reserved: 1024}))
}

func Test_Policy_Decide_QuickRespectsReserve(t *testing.T) {
	p := testPolicy(NewStaticSource(Signal{TotalBytes: 8 * gib, AvailableBytes: 4 * gib}))
	u := Usage{Allocated: 700, Reserved: 1024} // 768 usable by quick allocations

	assert.Equal(t, Decision{Accept: true}, p.Decide(u, 68, EffortQuick))
	assert.Equal(t, Decision{Reason: ReasonReserve}, p.Decide(u, 69, EffortQuick))

	// Full effort may dip into the reserve.
	assert.Equal(t, Decision{Accept: true}, p.Decide(u, 300, EffortFull))
}

func Test_Policy_Decide_SystemPressure(t *testing.T) {
	src := NewStaticSource(Signal{TotalBytes: 100 * gib, AvailableBytes: 5 * gib})
	p := testPolicy(src)
	u := Usage{Reserved: 1 << 20}

	assert.Equal(t, Decision{Reason: ReasonSystem}, p.Decide(u, 64, EffortQuick))
	assert.Equal(t, Decision{Accept: true}, p.Decide(u, 64, EffortFull))

	src.Set(Signal{TotalBytes: 100 * gib, AvailableBytes: gib})
	assert.Equal(t, Decision{Reason: ReasonSystemCritical}, p.Decide(u, 64, EffortFull))
}

func Test_Policy_SampleErrorMeansNoPressure(t *testing.T) {
	p := testPolicy(failingSource{})
	assert.False(t, p.UnderPressure(Usage{Reserved: 1024}))
	assert.True(t, p.Decide(Usage{Reserved: 1024}, 32, EffortQuick).Accept)
	assert.Equal(t, 1.0, p.Multiplier(Usage{Reserved: 1024}, 0))
}

func Test_Policy_Multiplier_PoolFactor(t *testing.T) {
	p := testPolicy(nil)
	u := Usage{Reserved: 4096} // 3072 available

	assert.Equal(t, 1.0, p.Multiplier(u, 0))
	assert.InDelta(t, 2.0, p.Multiplier(u, 1536), 1e-9)
	assert.InDelta(t, 4.0, p.Multiplier(Usage{Allocated: 1024, Reserved: 4096}, 1280), 1e-9)
	assert.Equal(t, 3072.0, p.Multiplier(u, 1<<20), "a full pool yields the largest finite factor")
	assert.Equal(t, 1.0, p.Multiplier(Usage{}, 64))
}

// Test_Policy_Multiplier_Monotone checks that the multiplier for a fixed
// added size never decreases while injected pressure rises.
func Test_Policy_Multiplier_Monotone(t *testing.T) {
	src := NewStaticSource(Signal{TotalBytes: 64 * gib, AvailableBytes: 64 * gib})
	p := testPolicy(src)
	const added = 4096

	t.Run("system", func(t *testing.T) {
		u := Usage{Allocated: 1 << 20, Reserved: 64 << 20}
		prev := 0.0
		for avail := uint64(64 * gib); avail > 0; avail -= gib / 4 {
			src.Set(Signal{TotalBytes: 64 * gib, AvailableBytes: avail})
			m := p.Multiplier(u, added)
			require.GreaterOrEqual(t, m, prev, "available %d", avail)
			require.GreaterOrEqual(t, m, 1.0)
			prev = m
		}
	})

	t.Run("pool", func(t *testing.T) {
		src.Set(Signal{TotalBytes: 64 * gib, AvailableBytes: 32 * gib})
		prev := 0.0
		for allocated := int64(0); allocated <= 64<<20; allocated += 1 << 18 {
			m := p.Multiplier(Usage{Allocated: allocated, Reserved: 64 << 20}, added)
			require.GreaterOrEqual(t, m, prev, "allocated %d", allocated)
			prev = m
		}
	})
}

func Test_Effort_Reason_String(t *testing.T) {
	assert.Equal(t, "quick", EffortQuick.String())
	assert.Equal(t, "full", EffortFull.String())
	assert.Equal(t, "Effort(9)", Effort(9).String())
	assert.Equal(t, "pool reserve", ReasonReserve.String())
}

func Test_SystemSource_Sample(t *testing.T) {
	sig, err := SystemSource{}.Sample()
	require.NoError(t, err)
	assert.LessOrEqual(t, sig.AvailableFraction(), 1.0)
	assert.GreaterOrEqual(t, sig.AvailableFraction(), 0.0)
}
