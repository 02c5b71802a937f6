package redis

import "errors"

var (
	ErrInvalidConnectionURL = errors.New("redis: invalid connection URL")
	ErrNotReady             = errors.New("redis: server did not become ready in time")
	ErrHealthcheckFailed    = errors.New("redis: healthcheck failed")
)
