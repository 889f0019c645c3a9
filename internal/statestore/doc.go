// Package statestore persists output snapshots across restarts.
//
// Two things are stored: the last transmitted slot frame per universe,
// and the settled logical state per device as an opaque JSON payload.
// On startup the controller loads both, seeds the output buffer with
// the universe frames, and republishes retained device state so the
// lights come back exactly where they were.
//
// The store is a thin layer over the SQLite wrapper in
// internal/infrastructure/database; the schema lives in the embedded
// migrations.
package statestore
