//go:build !unix && !windows

package vmem

// PageSize returns a conventional page size; nothing can be mapped here anyway.
func PageSize() int {
	return 4096
}

// Reserve always fails when virtual memory control is not available.
func Reserve(size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func Commit(b []byte, prot Prot) error { return ErrUnsupported }

func Decommit(b []byte) error { return ErrUnsupported }

func Protect(b []byte, prot Prot) error { return ErrUnsupported }

func Release(b []byte) error { return nil }

func ReserveShared(size int) (*SharedMapping, error) { return nil, ErrUnsupported }

func (m *SharedMapping) Decommit(off, n int) error { return ErrUnsupported }

func (m *SharedMapping) Close() error { return nil }

func CommitKeyed(b []byte, prot Prot, pkey int) error { return ErrUnsupported }

func AllocKey() (int, error) { return -1, ErrUnsupported }

func FreeKey(pkey int) error { return ErrUnsupported }
