// Package pool reserves the fixed virtual address range that holds all JIT
// code and publishes its bounds for lock-free classification of code pointers.
//
// # Lifecycle
//
// The process-wide pool is reserved once at startup and never released. Its
// bounds are written once through SetGlobalBounds and read everywhere after
// that without synchronization beyond an atomic load:
//
//	p, err := pool.Reserve(pool.Options{Size: 64 << 20})
//	if err != nil {
//	    return err // allocator stays invalid
//	}
//	_ = pool.SetGlobalBounds(p.Bounds())
//
//	if pool.IsJITPC(pc) {
//	    // frame belongs to generated code
//	}
//
// Pools created for tests or tools may be released with Release; the bounds
// of such pools are never published.
//
// # Mapping modes
//
// MapPrivate reserves anonymous memory and commits pages with a single
// protection, optionally tagged with a memory protection key.
//
// MapDualShared (Linux) maps one memfd twice: read+execute at the pool
// address and read+write at an unrelated alias. Only the separate-heap write
// thunk ever touches the alias.
//
// # Page commit
//
// Pages are committed lazily. The free-list engine reports page occupancy
// transitions through CommitPages and DecommitPages.
package pool
