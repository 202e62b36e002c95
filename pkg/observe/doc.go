// Package observe implements the client side of the CoAP observe
// extension (RFC 7641): the observation lifecycle state machine, the
// registry of active observations and the rollover-aware freshness
// ordering that protects against reordered notifications.
//
// # Lifecycle
//
// An observation is keyed by (remote endpoint, token). It is created
// when an outbound request carries Observe=0, updated on each accepted
// notification, and removed on deregistration (Observe=1), explicit
// cancellation, an error or non-notification response, or a peer reset.
//
// # Interception
//
// The Handler sits at two composition points in the message path:
// Outbound is invoked before a message leaves toward the network,
// Inbound after a message arrives. Neither performs I/O; both return a
// Verdict telling the caller whether to forward, consume or drop the
// item. The only case where upstream delivery is withheld is a
// notification that is not newer than the tracked state.
//
// # Freshness
//
// Notification order is decided by IsNewer, which compares the 24-bit
// observe sequence numbers inside a half-range window and falls back to
// arrival time once the tracked state is older than 128 seconds, per
// RFC 7641 §3.4. The transport provides no ordering guarantee, so this
// comparison is the sole safeguard against stale notifications
// corrupting observation state.
package observe
