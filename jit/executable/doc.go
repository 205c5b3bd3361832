// Package executable is the entry point for allocating and writing JIT code.
//
// An Allocator owns one fixed pool of executable memory, the free-list
// engine carving it, the write strategy used to put code into it, and the
// pressure policy gating new allocations. All mutable state is guarded by
// one Lock; callers that need several steps to be atomic (check an address,
// then read it) acquire the Lock themselves and pass the resulting Held
// token to the operations that require it.
//
// One process-wide Allocator is created by Initialize and reached through
// Singleton and the package-level functions. Explicit instances from New
// serve tests and tools.
//
// Typical use:
//
//	if err := executable.Initialize(executable.Default()); err != nil {
//		log.Fatal(err)
//	}
//	mem, err := executable.Allocate(len(code), owner, executable.EffortQuick)
//	if err != nil {
//		return err // fall back to the interpreter
//	}
//	defer mem.Release()
//	if _, err := executable.PerformJITMemcpy(mem.Pointer(), code); err != nil {
//		return err
//	}
package executable
