//go:build unix

package protect

import (
	"runtime/debug"
)

// writeFaults stores one byte into b and reports whether the store faulted.
func writeFaults(b []byte) (faulted bool) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if recover() != nil {
			faulted = true
		}
	}()
	b[0] = 0xcc
	return false
}
