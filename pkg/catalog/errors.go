package catalog

import "errors"

var (
	ErrInvalidTier   = errors.New("catalog: invalid plan tier")
	ErrInvalidPeriod = errors.New("catalog: invalid billing period")
	ErrInvalidQuota  = errors.New("catalog: quota must be positive")
	ErrNoPrices      = errors.New("catalog: at least one price mapping is required")
	ErrParseFailed   = errors.New("catalog: failed to parse catalog file")
)
