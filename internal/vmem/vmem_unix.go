//go:build unix

package vmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}

// Reserve maps size bytes of inaccessible address space.
// A protected, private, anonymous mapping does not commit memory.
func Reserve(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|extraReserveFlags)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}
	return b, nil
}

// Commit makes b accessible with prot. Anonymous pages are zero-filled on first touch.
func Commit(b []byte, prot Prot) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	return Protect(b, prot)
}

// Decommit drops the backing of b and makes it inaccessible again.
func Decommit(b []byte) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: madvise: %w", err)
	}
	return Protect(b, ProtNone)
}

// Protect changes the protection of b.
func Protect(b []byte, prot Prot) error {
	if err := unix.Mprotect(b, toUnix(prot)); err != nil {
		return fmt.Errorf("vmem: mprotect %s: %w", prot, err)
	}
	return nil
}

// Release unmaps a reservation.
func Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	err := unix.Munmap(b)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func toUnix(p Prot) int {
	prot := unix.PROT_NONE
	if p&ProtRead != 0 {
		prot |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}
