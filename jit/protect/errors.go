package protect

import "errors"

var (
	// ErrNoWritePath indicates that no strategy can write into the pool.
	ErrNoWritePath = errors.New("protect: no write path into executable memory")

	// ErrUnsupported indicates the strategy is not available on this platform.
	ErrUnsupported = errors.New("protect: strategy not supported on this platform")

	// ErrOutOfRange indicates a write that does not fit in the pool.
	ErrOutOfRange = errors.New("protect: write outside the pool")

	// ErrUnknownMode indicates an unrecognized write mode name.
	ErrUnknownMode = errors.New("protect: unknown write mode")
)
