// Package state implements the five partitions of the client-side mirror:
// market, portfolio, watchlist, analysis and notices.
//
// Each partition owns its records behind an RWMutex, exposes pure update
// operations plus copy-on-read snapshots, and never touches the network.
// Update operations are idempotent merges so at-least-once delivery from
// the push channel needs no dedup at the router. Missing keys are ignored,
// never errors. Every mutation signals a coalescing change channel that
// read-side consumers may watch.
//
// Derived fields (position value, gain, portfolio totals) are recomputed
// inside the same update that changes their inputs, so a reader between
// two updates never sees stale derived values.
package state
