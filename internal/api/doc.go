// Package api is the HTTP client for the conversations REST surface.
//
// It owns wire-shape normalization: the server is loose about primitive
// types (ids arrive as strings or numbers, timestamps as RFC 3339 or
// epoch milliseconds), so every payload is converted into the strict
// types of internal/chat at this boundary and nowhere else.
//
// Error taxonomy: 401 responses surface as ErrUnauthorized so callers
// can invalidate the session; not-found and too-short search queries
// come back as empty results, not errors; everything else wraps the
// status code for the caller to treat as transient.
package api
