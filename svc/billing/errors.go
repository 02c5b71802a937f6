package billing

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSignatureInvalid rejects webhooks whose signature does not
	// verify. The HTTP layer answers 400.
	ErrSignatureInvalid = errors.New("billing: webhook signature invalid")

	// ErrMalformedEvent rejects webhooks whose payload cannot be
	// decoded into a known envelope shape.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")

	// ErrPortalUnavailable covers any provider failure while creating
	// a customer portal session.
	ErrPortalUnavailable = errors.New("billing: customer portal unavailable")

	ErrStoreRequired   = errors.New("billing: ledger store is required")
	ErrCatalogRequired = errors.New("billing: catalog is required")
	ErrSecretRequired  = errors.New("billing: webhook secret is required")
)

// PlanChangeDeniedError is returned by ChangePlan when the transition
// rules reject the request. RetryAt is the earliest moment the same
// request becomes legal.
type PlanChangeDeniedError struct {
	Reason  error
	RetryAt time.Time
}

func (e *PlanChangeDeniedError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("billing: plan change denied: %v", e.Reason)
	}
	return fmt.Sprintf("billing: plan change denied: %v (retry at %s)", e.Reason, e.RetryAt.Format(time.RFC3339))
}

func (e *PlanChangeDeniedError) Unwrap() error { return e.Reason }
