// Package vmem provides platform-specific helpers for reserving and
// protecting the address space behind the executable pool.
//
// A region moves through three states:
//
//	Reserve   address space only, no access, no backing
//	Commit    backed pages with the requested protection
//	Decommit  backing dropped, back to no access
//
// Release unmaps the whole reservation and is only used for pools that do not
// live for the process lifetime (tests and the CLI).
package vmem

import "errors"

// Prot is a page protection bit set.
type Prot int

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1 << 0
	ProtWrite Prot = 1 << 1
	ProtExec  Prot = 1 << 2

	ProtRX  = ProtRead | ProtExec
	ProtRW  = ProtRead | ProtWrite
	ProtRWX = ProtRead | ProtWrite | ProtExec
)

// String returns the protection in rwx notation.
func (p Prot) String() string {
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

var (
	// ErrUnsupported indicates the operation has no implementation on this platform.
	ErrUnsupported = errors.New("vmem: not supported on this platform")

	// ErrEmpty indicates a zero-length region was passed where pages are required.
	ErrEmpty = errors.New("vmem: empty region")
)

// SharedMapping is one backing object mapped twice: Exec is read+execute and
// Write is read+write. Both views alias the same physical pages.
type SharedMapping struct {
	Exec  []byte
	Write []byte
	fd    int
}
