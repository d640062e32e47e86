// Package session is the reconciliation engine for one signed-in user.
//
// It wires the push gateway, the REST client, and the preference
// repository into the thread and message stores, and is the only place
// that mutates them. Everything the two data sources can disagree on
// (duplicate deliveries, optimistic sends racing their own echo, an
// older history page overlapping live messages) converges here through
// the store reconciliation rules.
//
// # Ordering
//
// Push events arrive on the gateway's single reader goroutine and are
// applied one at a time; REST completions take the session lock before
// touching state. The active thread is an explicit cell read at
// dispatch time, never a value captured by a long-lived closure.
//
// # Unread accounting
//
// The session holds the single global unread counter. It moves in
// lock-step with per-thread counts: +1 per push message for a thread
// that is not active, and -N when a thread with N unread messages is
// marked read.
package session
