package icache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordingTracker(line uintptr) (*Tracker, *[]Range) {
	var got []Range
	t := NewTracker()
	t.lineSize = line
	t.flush = func(addr uintptr, n int) {
		got = append(got, Range{Addr: addr, Len: n})
	}
	return t, &got
}

func Test_LineSize_PowerOfTwo(t *testing.T) {
	n := LineSize()
	require.Positive(t, n)
	assert.Zero(t, n&(n-1), "line size %d is not a power of two", n)
}

func Test_Flush_ToleratesEmptyAndRealMemory(t *testing.T) {
	buf := make([]byte, 1024)
	Flush(0, 0)
	Flush(addrOf(buf), len(buf))
}

func Test_Tracker_Coalesce_MergesAdjacentLines(t *testing.T) {
	tr, _ := newRecordingTracker(64)
	tr.Add(0x1010, 8)
	tr.Add(0x1030, 40) // crosses into the next line
	tr.Add(0x2000, 1)
	tr.Add(0x1080, 4) // adjacent to the merged range
	tr.Add(0x3000, 0) // ignored

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, []Range{
		{Addr: 0x1000, Len: 0xc0},
		{Addr: 0x2000, Len: 0x40},
	}, tr.Coalesced())
}

func Test_Tracker_Flush_IssuesCoalescedRangesOnce(t *testing.T) {
	tr, got := newRecordingTracker(64)
	tr.Add(0x4000, 10)
	tr.Add(0x4008, 10)

	require.NoError(t, tr.Flush(context.Background()))
	assert.Equal(t, []Range{{Addr: 0x4000, Len: 64}}, *got)
	assert.Zero(t, tr.Len())

	// Nothing pending: no further flushes.
	require.NoError(t, tr.Flush(context.Background()))
	assert.Len(t, *got, 1)
}

func Test_Tracker_Flush_Cancelled(t *testing.T) {
	tr, got := newRecordingTracker(64)
	tr.Add(0x4000, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Flush(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *got)
	assert.Equal(t, 1, tr.Len(), "ranges stay pending after cancellation")

	tr.Reset()
	assert.Zero(t, tr.Len())
}
