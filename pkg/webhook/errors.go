package webhook

import "errors"

var (
	ErrMissingSignature    = errors.New("webhook: signature header is missing")
	ErrMalformedHeader     = errors.New("webhook: malformed signature header")
	ErrSignatureMismatch   = errors.New("webhook: signature mismatch")
	ErrTimestampOutOfRange = errors.New("webhook: signature timestamp outside replay window")
	ErrMissingSecret       = errors.New("webhook: signing secret is required")
	ErrEmptyPayload        = errors.New("webhook: payload cannot be empty")
)
