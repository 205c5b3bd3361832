package icache

import "sync"

// Implemented in flush_arm64.s.
func readCTR() uint64
func cleanDataLine(addr uintptr)
func invalidateInstructionLine(addr uintptr)
func barrierDSB()
func barrierISB()

// lineSizes decodes the minimum data and instruction cache line sizes from
// CTR_EL0. Both fields hold log2 of the line size in 4-byte words.
var lineSizes = sync.OnceValues(func() (uintptr, uintptr) {
	ctr := readCTR()
	dline := uintptr(4) << ((ctr >> 16) & 0xf)
	iline := uintptr(4) << (ctr & 0xf)
	return dline, iline
})

// LineSize returns the smallest cache line size relevant to Flush.
func LineSize() int {
	d, i := lineSizes()
	return int(min(d, i))
}

// Flush makes the n bytes at addr visible to instruction fetch.
func Flush(addr uintptr, n int) {
	if n <= 0 {
		return
	}
	dline, iline := lineSizes()
	end := addr + uintptr(n)

	for p := addr &^ (dline - 1); p < end; p += dline {
		cleanDataLine(p)
	}
	barrierDSB()
	for p := addr &^ (iline - 1); p < end; p += iline {
		invalidateInstructionLine(p)
	}
	barrierDSB()
	barrierISB()
}
