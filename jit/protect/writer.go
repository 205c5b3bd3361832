package protect

import (
	"fmt"
	"strings"
)

// Writer copies bytes into the pool at an offset from its start.
type Writer interface {
	// Name identifies the strategy in logs and dumps.
	Name() string

	// WriteIntoRegion copies src to pool offset off. It does not flush the
	// instruction cache.
	WriteIntoRegion(off uintptr, src []byte) error
}

// Reader is implemented by writers whose pool is not readable by every
// thread, so reads must go through the strategy as well.
type Reader interface {
	ReadRegion(off uintptr, dst []byte) error
}

// SeparateHeapFunc writes src at pool offset off from a context that holds
// write permission to the pool.
type SeparateHeapFunc func(off uintptr, src []byte)

// Mode names a write strategy preference.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeFast     Mode = "fast"
	ModeSeparate Mode = "separate"
	ModeMprotect Mode = "mprotect"
	ModeNone     Mode = "none"
)

// Modes lists every accepted mode in preference order.
var Modes = []Mode{ModeAuto, ModeFast, ModeSeparate, ModeMprotect, ModeNone}

// ParseMode parses a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeAuto, nil
	}
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	return string(m)
}

// unavailable is the strategy used when nothing can write into the pool.
type unavailable struct{}

// Unavailable returns a writer that always fails with ErrNoWritePath.
func Unavailable() Writer {
	return unavailable{}
}

func (unavailable) Name() string { return string(ModeNone) }

func (unavailable) WriteIntoRegion(uintptr, []byte) error {
	return ErrNoWritePath
}
