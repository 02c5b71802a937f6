// Package jobs tracks long-running engine calls as jobs with a
// push-based progress channel and a pull-based result fallback.
//
// A job moves pending -> running -> completed | failed, and terminal
// states are final. Progress percentages are monotonically
// non-decreasing; regressions reported by the engine are clamped.
//
// Subscribers get a snapshot of the job's current state first and then
// live events until the terminal event, after which the channel
// closes. A subscriber joining late misses earlier events but always
// receives the terminal one while the job is still tracked. Closing a
// subscription never cancels the job: the upstream work is already
// paid for and settlement must still run, observed or not.
//
// Await blocks until the terminal state and is the deterministic
// fallback when a push channel cannot be established or is lost.
//
// Jobs are not resumable across process restarts: Shutdown fails every
// non-terminal job with ErrBrokerRestarted and callers retry the whole
// request. Terminal jobs are garbage-collected after a bounded
// retention period.
package jobs
