package auction

import "errors"

// Validation errors.
var (
	ErrInvalidArguments  = errors.New("auction: invalid arguments")
	ErrZeroAmount        = errors.New("auction: amounts must be greater than zero")
	ErrAmountTooLarge    = errors.New("auction: amount exceeds supported width")
	ErrAmountOverflow    = errors.New("auction: arithmetic overflow")
	ErrInvalidTimeWindow = errors.New("auction: time periods are not configured correctly")
	ErrEndDateInPast     = errors.New("auction: end date must be in the future")
	ErrSameAssets        = errors.New("auction: in and out assets must differ")
	ErrFeeTooHigh        = errors.New("auction: fee numerator too high")
	ErrInvalidOrder      = errors.New("auction: invalid order")
	ErrPriceNotImproving = errors.New("auction: limit price not better than minimal offer")
	ErrOrderTooSmall     = errors.New("auction: order too small")
)

// Ordering errors.
var (
	ErrInvalidInsertionPoint = errors.New("auction: invalid insertion point")
	ErrCheckpointTooAdvanced = errors.New("auction: precalculated sum is already too advanced")
)

// Phase errors.
var (
	ErrPlacementWindowClosed   = errors.New("auction: order placement window closed")
	ErrWindowClosed            = errors.New("auction: cancellation window closed")
	ErrNotClosed               = errors.New("auction: order placement still running")
	ErrNotYetFinished          = errors.New("auction: not yet finished")
	ErrAtomicClosureNotAllowed = errors.New("auction: atomic closure not allowed")
)

// Ownership errors.
var (
	ErrForbidden      = errors.New("auction: only the owner may act on this order")
	ErrCrossUserClaim = errors.New("auction: only allowed to claim for the same user")
	ErrUnknownUser    = errors.New("auction: unknown user")
)

// Resource bound errors. Recoverable by retrying with fewer steps.
var (
	ErrTooManyOrders  = errors.New("auction: too many orders summed up")
	ErrQueueExhausted = errors.New("auction: reached end of order list")
)

// Double action errors.
var (
	ErrAlreadySettled = errors.New("auction: already settled")
	ErrAlreadyClaimed = errors.New("auction: order is no longer claimable")
)

// ErrTransferFailed wraps a Ledger failure; the enclosing operation had no
// effect.
var ErrTransferFailed = errors.New("auction: asset transfer failed")
