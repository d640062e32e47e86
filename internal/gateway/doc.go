// Package gateway owns the single push-channel connection for a
// signed-in identity and fans its events out to any number of
// subscribers.
//
// One Gateway is constructed per authenticated session and injected
// into consumers; nothing here is process-global. Connect is
// idempotent, the reader goroutine dispatches events in delivery
// order, and reconnects refresh a stale credential before redialing.
//
// If a message event arrives while nothing is subscribed, the Gateway
// bumps a spill counter instead of materializing state, so the unread
// total is never silently lost while no UI is observing the stream.
package gateway
