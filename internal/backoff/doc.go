// Package backoff implements the retrying-poll primitive that drives all
// REST polling in the sync core.
//
// A Scheduler owns at most one session at a time. The first invocation is
// immediate; the configured initial delay is the gap before the second.
// Successful invocations advance the delay by the multiplier, failed ones
// by twice the multiplier, both clamped to the max delay. A session halts
// on its stop predicate, on max attempts, or on Stop/Reset.
package backoff
