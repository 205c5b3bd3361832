// Package protect implements the strategies for writing into executable
// memory while keeping it non-writable for everything else.
//
// Four strategies exist, selected once when the pool is reserved:
//
//	fast         memory protection keys; pages are tagged with a key whose
//	             write permission is opened only for the writing thread
//	separate     a separate-heap thunk writes by pool offset; on Linux a
//	             read+write alias of a dual-mapped pool provides one
//	mprotect     writers are serialized and the touched pages are flipped
//	             to read+write and back to read+execute
//	none         every write fails with ErrNoWritePath
//
// Because the fast strategy changes how the pool is mapped (pages carry a
// protection key), selection happens before reservation: Candidates returns
// the plans in preference order and Select reserves a pool for the first
// one that works.
package protect
