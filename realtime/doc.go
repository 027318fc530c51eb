// Package realtime pushes account enforcement events to live client
// connections.
//
// A Gateway authenticates WebSocket handshakes through a Verifier that knows
// two keyspaces (user and admin), tracks the latest connection per user in a
// Registry and subscribes every connection to its topics (user:{id}, and
// admins for administrators). A Broadcaster fans events out to topic members
// without blocking, and a Bridge turns committed account mutations into
// events.
//
// Delivery is at-most-once. Clients that miss a push are stopped by the
// status gate on their next REST call.
package realtime
