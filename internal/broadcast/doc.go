// Package broadcast is the real-time gateway for change notifications.
//
// The hub accepts WebSocket connections, scopes them with an authenticate
// message, and fans task_update notifications out to every authorized
// connection. Delivery is best-effort and fire-and-forget: no
// acknowledgments, no retries, and a failed send to one connection never
// blocks delivery to the rest (the next state change redelivers current
// state anyway).
//
// Per-task notifications are delivered in generation order. Each connection
// remembers the last version sent per task and drops anything not newer, so
// an older snapshot can never land after a newer one and an unchanged state
// is never re-sent.
//
// The engine only ever emits task_update. The other message kinds in the
// closed union belong to collaborators but are validated here at the
// boundary so dynamic, loosely-typed strings never reach the engine.
package broadcast
