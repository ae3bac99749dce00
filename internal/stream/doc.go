// Package stream maintains the push channel: one WebSocket connection
// to the backend that delivers typed envelopes to the event router.
//
// The client owns its connection lifecycle. It reconnects on failure
// with exponential backoff and jitter, keeps the connection alive with
// pings, and treats prolonged pong silence as a dead connection. Frames
// that fail to decode are dropped and counted; they never interrupt
// the stream.
package stream
