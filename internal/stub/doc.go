// Package stub is a synthetic research backend for local runs and tests.
//
// It serves the same REST shapes as the real backend from an in-memory
// universe, drives a random-walk quote feed, simulates analysis jobs,
// and broadcasts every push message type over /ws.
package stub
