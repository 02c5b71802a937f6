package transition

import "errors"

var (
	// ErrDowngradeBlocked rejects self-service moves to a lower plan
	// rank. Downgrades only happen via explicit provider cancellation.
	ErrDowngradeBlocked = errors.New("transition: downgrade blocked while cycle is active")

	// ErrPeriodLocked rejects monthly/annual switches before the
	// current cycle's renewal boundary.
	ErrPeriodLocked = errors.New("transition: billing period locked until renewal")

	// ErrInvalidChange rejects requests naming an unknown tier or
	// period. Decisions fail closed on unvalidated input.
	ErrInvalidChange = errors.New("transition: invalid plan or billing period")
)
