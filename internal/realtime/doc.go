// Package realtime implements the engagement broadcast hub: an actor that
// owns the connection registry, fans engagement events out to subscribed
// WebSocket connections, and evicts silent connections on a liveness sweep.
//
// All registry state is owned by a single goroutine; public methods post
// commands onto a channel and never touch the maps directly. Delivery is
// best effort: broadcast methods return the number of recipients attempted,
// and a send that cannot be buffered is skipped without aborting the
// fan-out.
package realtime
