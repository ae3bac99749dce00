// Package router implements the Event Router: the single entry point
// through which push-channel messages and REST request outcomes reach the
// state partitions.
//
// Every inbound event lands on one growable FIFO queue drained by a
// single goroutine, so partition updates apply strictly in arrival order
// with run-to-completion semantics. The dispatch table is a static
// mapping from push message type to one partition operation; unknown
// types and malformed payloads are counted and logged, never fatal.
// Because partition operations are idempotent merges, at-least-once
// delivery needs no dedup here.
package router
