// Package pressure decides whether an allocation may proceed given how full
// the pool is and how much physical memory the system has left.
//
// Two signals feed a Policy: pool usage (bytes allocated against bytes
// reserved) and a Source sampling system memory. A fraction of the pool is
// withheld from quick allocations so that allocations which must succeed
// still find room when the pool is nearly full.
package pressure
