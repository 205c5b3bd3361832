//go:build linux

package vmem

import (
	"fmt"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// pkeyDisableWrite is PKEY_DISABLE_WRITE from <sys/mman.h>. x/sys/unix has
// the pkey syscall numbers but no wrappers.
const pkeyDisableWrite = 0x2

// MAP_NORESERVE keeps large reservations out of overcommit accounting.
const extraReserveFlags = unix.MAP_NORESERVE

// ReserveShared creates a memfd of size bytes and maps it twice.
// The memfd allocates pages lazily, so neither view commits memory up front.
func ReserveShared(size int) (*SharedMapping, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	fd, err := unix.MemfdCreate("execalloc", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("vmem: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("vmem: ftruncate: %w", err)
	}

	exec, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_EXEC, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("vmem: map exec view: %w", err)
	}
	write, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Munmap(exec)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("vmem: map write view: %w", err)
	}

	return &SharedMapping{Exec: exec, Write: write, fd: fd}, nil
}

// Decommit punches a hole over [off, off+n) so the backing pages are freed.
// Both views read zeros afterwards.
func (m *SharedMapping) Decommit(off, n int) error {
	err := unix.Fallocate(m.fd, unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, int64(off), int64(n))
	if err != nil {
		return fmt.Errorf("vmem: punch hole: %w", err)
	}
	return nil
}

// Close unmaps both views and closes the backing descriptor.
func (m *SharedMapping) Close() error {
	var err error
	if m.Exec != nil {
		err = multierr.Append(err, unix.Munmap(m.Exec))
		m.Exec = nil
	}
	if m.Write != nil {
		err = multierr.Append(err, unix.Munmap(m.Write))
		m.Write = nil
	}
	if m.fd > 0 {
		err = multierr.Append(err, unix.Close(m.fd))
		m.fd = -1
	}
	return err
}

// CommitKeyed commits b with prot and assigns it the protection key pkey.
func CommitKeyed(b []byte, prot Prot, pkey int) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	_, _, errno := unix.Syscall6(unix.SYS_PKEY_MPROTECT,
		uintptr(unsafe.Pointer(unsafe.SliceData(b))), uintptr(len(b)),
		uintptr(toUnix(prot)), uintptr(pkey), 0, 0)
	if errno != 0 {
		return fmt.Errorf("vmem: pkey_mprotect %s key=%d: %w", prot, pkey, errno)
	}
	return nil
}

// AllocKey allocates a memory protection key. The calling thread starts with
// write access to pages carrying the key disabled.
func AllocKey() (int, error) {
	k, _, errno := unix.Syscall(unix.SYS_PKEY_ALLOC, 0, pkeyDisableWrite, 0)
	if errno != 0 {
		return -1, fmt.Errorf("vmem: pkey_alloc: %w", errno)
	}
	return int(k), nil
}

// FreeKey returns a protection key to the kernel.
func FreeKey(pkey int) error {
	if _, _, errno := unix.Syscall(unix.SYS_PKEY_FREE, uintptr(pkey), 0, 0); errno != 0 {
		return fmt.Errorf("vmem: pkey_free key=%d: %w", pkey, errno)
	}
	return nil
}
