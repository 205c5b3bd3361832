//go:build !arm64

package icache

// coherentLineSize is the coalescing granularity on targets whose
// instruction cache is coherent with data writes.
const coherentLineSize = 64

// LineSize returns the cache line size used for coalescing.
func LineSize() int {
	return coherentLineSize
}

// Flush is a no-op: the instruction cache observes data writes.
func Flush(addr uintptr, n int) {}
