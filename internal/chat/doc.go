// Package chat holds the client-side conversation state: thread summaries,
// per-thread message sequences, and the reconciliation rules that keep both
// consistent when the same message can arrive over REST and over the push
// channel.
//
// # Stores
//
// ThreadStore keeps exactly one Thread per id and merges partial updates so
// a server page refetch never clobbers client-local flags. MessageStore
// keeps an ordered, deduplicated message sequence per thread; Reconcile is
// the single convergence point for optimistic sends and push echoes.
//
// Both stores maintain an id -> position index incrementally with every
// mutation, so lookups never require rescanning the ordered slice.
//
// # Ordering
//
// Thread order is a pure function of thread metadata: a priority tier
// (pinned+favorite, pinned, favorite, none) then last-message time
// descending. The sort is stable so equal threads keep insertion order.
package chat
