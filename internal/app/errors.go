package app

import "errors"

// Failure classes of the delivery engine. Every one of them is scoped to a
// single tenant/feature unit; none of them stops a tick.
var (
	ErrChannelUnbound     = errors.New("feature enabled but no output channel bound")
	ErrSinkDeliveryFailed = errors.New("sending to output channel failed")
	ErrStoreReadFailed    = errors.New("store read failed")
	ErrStoreWriteFailed   = errors.New("store write failed")
	ErrEmptyPool          = errors.New("content pool is empty")
	ErrInvalidSchedule    = errors.New("stored schedule is invalid")
)
