// Package align provides power-of-two rounding helpers shared by the pool,
// the free-list engine and the cache maintenance code.
//
// All alignments passed to these helpers must be powers of two. Granules and
// page sizes are always powers of two on supported platforms, so the helpers
// use masks instead of division.
package align

// Up returns n rounded up to the next multiple of a.
//
// Example:
//
//	Up(1, 32)   = 32
//	Up(32, 32)  = 32
//	Up(100, 32) = 128
func Up(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// Down returns n rounded down to a multiple of a.
func Down(n, a int) int {
	return n &^ (a - 1)
}

// UpUintptr is Up for addresses.
func UpUintptr(p, a uintptr) uintptr {
	return (p + a - 1) &^ (a - 1)
}

// DownUintptr is Down for addresses.
func DownUintptr(p, a uintptr) uintptr {
	return p &^ (a - 1)
}

// IsAligned reports whether n is a multiple of a.
func IsAligned(n, a int) bool {
	return n&(a-1) == 0
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
