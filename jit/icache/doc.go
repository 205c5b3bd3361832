// Package icache keeps instruction fetch coherent with freshly written code.
//
// On architectures whose instruction cache does not snoop data writes
// (arm64), code written through a data mapping must be cleaned to the point
// of unification and invalidated in the instruction cache before it runs.
// On amd64 and 386 the hardware keeps the caches coherent and Flush is a
// no-op.
//
// Flush handles one range immediately. Tracker accumulates ranges written by
// a batch of copies and flushes their coalesced cache lines once.
package icache
