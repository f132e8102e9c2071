package betting

import "errors"

// Failure taxonomy for bet placement and settlement. Callers branch on these
// with errors.Is; creation-time failures abort the bet, settlement-time
// deferrals are retried on the next feed refresh.
var (
	// ErrInvalidAmount rejects a non-positive stake.
	ErrInvalidAmount = errors.New("betting: amount must be positive")

	// ErrInvalidDuration rejects a window outside the permitted set.
	ErrInvalidDuration = errors.New("betting: duration not permitted")

	// ErrInvalidDirection rejects anything but HIGHER or LOWER.
	ErrInvalidDirection = errors.New("betting: unknown direction")

	// ErrInsufficientBalance rejects a stake above the account's balance at
	// placement time. The check is point-in-time, not a reservation.
	ErrInsufficientBalance = errors.New("betting: insufficient balance")

	// ErrPriceUnavailable means no starting reference price exists yet.
	ErrPriceUnavailable = errors.New("betting: reference price unavailable")

	// ErrDuplicateID means the registry already holds the bet id.
	ErrDuplicateID = errors.New("betting: duplicate bet id")

	// ErrNotFound means the registry holds no bet with the given id.
	ErrNotFound = errors.New("betting: bet not found")

	// ErrInvalidTransition guards the state machine: only ACTIVE bets may
	// move, and only to WON or LOST. The losing trigger of a settlement race
	// observes this error.
	ErrInvalidTransition = errors.New("betting: invalid status transition")

	// ErrSettlementDeferred means the bet is due but no price snapshot exists
	// to settle it against; the next refresh sweep retries.
	ErrSettlementDeferred = errors.New("betting: settlement deferred")
)
