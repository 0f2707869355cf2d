package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrLockHeld         = errors.New("lock already held")
	ErrRunInProgress    = errors.New("run already in progress")
	ErrInvalidMarket    = errors.New("invalid market")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrDeactivateFailed = errors.New("deactivate active spreads failed")
)
