package pool

import "errors"

var (
	// ErrReservationFailed indicates the platform refused the pool mapping.
	ErrReservationFailed = errors.New("pool: reservation failed")

	// ErrBoundsAlreadySet indicates SetGlobalBounds was called twice.
	ErrBoundsAlreadySet = errors.New("pool: global bounds already set")

	// ErrOutOfRange indicates a page or byte range outside the reservation.
	ErrOutOfRange = errors.New("pool: range outside reservation")

	// ErrReleased indicates use of a pool after Release.
	ErrReleased = errors.New("pool: released")
)
