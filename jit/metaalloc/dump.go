package metaalloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Dump writes a human-readable summary of the engine state to w.
func (e *Engine) Dump(w io.Writer) error {
	p := message.NewPrinter(language.English)
	s := e.Stats()

	lines := []struct {
		format string
		args   []any
	}{
		{"size classes:      %s (%d + large)\n", []any{e.sizeTable, e.sizeTable.NumClasses()}},
		{"reserved:          %d bytes\n", []any{s.BytesReserved}},
		{"allocated:         %d bytes (peak %d)\n", []any{s.BytesAllocated, s.PeakBytesAllocated}},
		{"pages committed:   %d of %d\n", []any{s.PagesCommitted, len(e.pages.counts)}},
		{"live allocations:  %d\n", []any{s.LiveAllocations}},
		{"free ranges:       %d (largest %d bytes)\n", []any{s.FreeRanges, s.LargestFreeRange}},
		{"allocs:            %d (%d failed, %d large)\n", []any{s.AllocCalls, s.AllocFailures, s.LargeAllocs}},
		{"frees:             %d of %d releases\n", []any{s.FreeCalls, s.ReleaseCalls}},
		{"splits/coalesces:  %d / %d fwd, %d bwd\n", []any{s.Splits, s.CoalesceForward, s.CoalesceBackward}},
		{"commit/decommit:   %d / %d (%d / %d failed)\n", []any{s.CommitCalls, s.DecommitCalls, s.CommitFailures, s.DecommitFailures}},
	}
	for _, l := range lines {
		if _, err := p.Fprintf(w, l.format, l.args...); err != nil {
			return err
		}
	}
	return nil
}

// DumpRanges writes one line per free and allocated range, ordered by offset.
func (e *Engine) DumpRanges(w io.Writer) error {
	p := message.NewPrinter(language.English)
	free := e.FreeRanges()
	live := e.Allocations()

	fi, ai := 0, 0
	for fi < len(free) || ai < len(live) {
		var err error
		if ai >= len(live) || (fi < len(free) && free[fi].Off < live[ai].Handle.Offset) {
			r := free[fi]
			_, err = p.Fprintf(w, "%#08x %10d free\n", r.Off, r.Len)
			fi++
		} else {
			a := live[ai]
			_, err = p.Fprintf(w, "%#08x %10d used %s refs=%d\n", a.Handle.Offset, a.Handle.Size, a.Owner, a.Refs)
			ai++
		}
		if err != nil {
			return err
		}
	}
	return nil
}
