// Package ledger persists per-subscriber billing state: the current
// plan, billing cycle bounds, provider linkage, and the word balance
// the metering pipeline debits against.
//
// Exactly one entry exists per subscriber identity. All balance
// mutations are single atomic read-modify-writes; debits carry the
// completed job's id as an idempotency key so retried completion
// callbacks change the balance at most once. A debit that would drive
// the balance negative clamps to zero instead of failing — by the time
// settlement runs the upstream work is already spent, and admission
// control at job start is the place to prevent over-use.
//
// Two implementations are provided: MemoryStore for tests and
// single-process setups, and PGStore backed by Postgres row-level
// atomicity for production.
package ledger
