// Package server exposes the sync core over HTTP for the dashboard UI.
//
// All handlers read partition snapshots or dispatch core operations;
// none touch partition state directly. Every response render is counted
// in the telemetry sampler under the route pattern.
package server
