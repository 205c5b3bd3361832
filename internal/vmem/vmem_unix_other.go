//go:build unix && !linux

package vmem

const extraReserveFlags = 0

// ReserveShared needs memfd and is Linux only.
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

// AllocKey needs protection keys and is Linux only.
func AllocKey() (int, error) {
	return -1, ErrUnsupported
}

// FreeKey is unreachable without AllocKey.
func FreeKey(pkey int) error {
	return ErrUnsupported
}
