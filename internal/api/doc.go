// Package api provides the REST client for the research backend.
//
// The client retries retryable failures (HTTP 5xx and 429) with
// exponential backoff and jitter, optionally rate-limits outbound
// requests, and reports call durations and errors to the telemetry
// sampler. It performs no validation of backend data beyond decoding;
// the state partitions apply their own merge rules.
package api
