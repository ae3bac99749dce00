// Package dashboard is the sync core: it owns the state partitions, the
// event router, the push channel, the backoff pollers, and the REST
// client, and exposes the operations the HTTP surface dispatches.
//
// Every data change flows through the event router, so REST outcomes
// and push messages interleave in arrival order. Reads return snapshots
// taken from the partitions; callers never observe partial updates.
package dashboard
