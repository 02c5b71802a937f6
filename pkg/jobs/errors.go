package jobs

import "errors"

var (
	// ErrJobNotFound is returned for unknown or already
	// garbage-collected job ids.
	ErrJobNotFound = errors.New("jobs: job not found")

	// ErrBrokerClosed rejects new work after shutdown began.
	ErrBrokerClosed = errors.New("jobs: broker is closed")

	// ErrBrokerRestarted fails jobs that were still running when the
	// broker shut down; callers retry the whole request.
	ErrBrokerRestarted = errors.New("jobs: broker restarted, retry the request")

	ErrEngineRequired = errors.New("jobs: engine is required")
)
