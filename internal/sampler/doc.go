// Package sampler collects lightweight runtime telemetry: timing samples
// per key, error counters, and render counters.
//
// Timing keys hold a bounded reservoir, so memory stays constant no
// matter how long the daemon runs. Snapshot computes count, min, max,
// mean, p50 and p95 per key plus a 0-100 health score. Recording never
// blocks a caller and never returns an error; a broken sampler must not
// take the sync path down with it. A cron reporter periodically flushes
// snapshots to a Sink, by default the structured log.
package sampler
