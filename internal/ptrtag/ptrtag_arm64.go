//go:build arm64

package ptrtag

// topByteMask clears bits 56-63. Top-byte-ignore is enabled for user space on
// arm64 Linux and Darwin, so any tag lives there.
const topByteMask = (uintptr(1) << 56) - 1

func defaultUntag(p uintptr) uintptr {
	return p & topByteMask
}
