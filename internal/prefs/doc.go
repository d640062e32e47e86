// Package prefs is the single repository for client-local thread
// preferences: favorites, pins, and archives.
//
// Pins and archives are owned by the client and never sent to any API.
// Favorites mirror server state; Merge reconciles the two sides into
// the effective flags without touching storage, so the merge rule is
// testable in isolation.
package prefs
