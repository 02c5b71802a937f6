// Package rewrite orchestrates rewriting jobs: admission against the
// word balance and rate limits, job execution through the progress
// broker, and settlement of produced words against the ledger.
//
// Admission rejects a job whose estimated cost (the input word count)
// exceeds the subscriber's balance. Settlement debits the actual
// produced word count once per job; the upstream work is already paid
// for when settlement runs, so debits clamp at zero instead of
// failing.
package rewrite
