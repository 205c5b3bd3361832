package metaalloc

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroSize indicates a request for zero or negative bytes.
	ErrZeroSize = errors.New("metaalloc: size must be positive")

	// ErrOutOfPoolMemory indicates that no free range is large enough.
	ErrOutOfPoolMemory = errors.New("metaalloc: out of pool memory")

	// ErrTooLarge indicates a request larger than the whole region.
	ErrTooLarge = fmt.Errorf("%w: request exceeds region size", ErrOutOfPoolMemory)

	// ErrStaleHandle indicates a handle that no longer names a live allocation.
	ErrStaleHandle = errors.New("metaalloc: stale or unknown handle")

	// ErrBadConfig indicates an unusable granule or page size.
	ErrBadConfig = errors.New("metaalloc: bad config")

	// ErrCorrupt indicates a violated free-list invariant.
	ErrCorrupt = errors.New("metaalloc: invariant violated")
)
