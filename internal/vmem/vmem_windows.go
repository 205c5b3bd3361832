//go:build windows

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PageSize returns the allocation page size.
func PageSize() int {
	return windows.Getpagesize()
}

// Reserve reserves size bytes of address space without committing it.
func Reserve(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("vmem: VirtualAlloc reserve %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// Commit backs b with pages carrying prot.
func Commit(b []byte, prot Prot) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	_, err := windows.VirtualAlloc(base(b), uintptr(len(b)), windows.MEM_COMMIT, toWindows(prot))
	if err != nil {
		return fmt.Errorf("vmem: VirtualAlloc commit: %w", err)
	}
	return nil
}

// Decommit releases the backing of b and leaves it reserved.
func Decommit(b []byte) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if err := windows.VirtualFree(base(b), uintptr(len(b)), windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("vmem: VirtualFree decommit: %w", err)
	}
	return nil
}

// Protect changes the protection of committed pages.
func Protect(b []byte, prot Prot) error {
	var old uint32
	if err := windows.VirtualProtect(base(b), uintptr(len(b)), toWindows(prot), &old); err != nil {
		return fmt.Errorf("vmem: VirtualProtect %s: %w", prot, err)
	}
	return nil
}

// Release frees the whole reservation.
func Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return windows.VirtualFree(base(b), 0, windows.MEM_RELEASE)
}

// ReserveShared is not implemented on Windows.
func ReserveShared(size int) (*SharedMapping, error) {
	return nil, ErrUnsupported
}

// Decommit is unreachable without ReserveShared.
func (m *SharedMapping) Decommit(off, n int) error {
	return ErrUnsupported
}

// Close is a no-op without ReserveShared.
func (m *SharedMapping) Close() error {
	return nil
}

// CommitKeyed needs protection keys and is Linux only.
func CommitKeyed(b []byte, prot Prot, pkey int) error {
	return ErrUnsupported
}

func base(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func toWindows(p Prot) uint32 {
	switch p {
	case ProtRead:
		return windows.PAGE_READONLY
	case ProtRW:
		return windows.PAGE_READWRITE
	case ProtRX:
		return windows.PAGE_EXECUTE_READ
	case ProtRWX:
		return windows.PAGE_EXECUTE_READWRITE
	case ProtExec:
		return windows.PAGE_EXECUTE
	default:
		return windows.PAGE_NOACCESS
	}
}

// AllocKey is not available on Windows.
func AllocKey() (int, error) { return -1, ErrUnsupported }

// FreeKey is not available on Windows.
func FreeKey(pkey int) error { return ErrUnsupported }
