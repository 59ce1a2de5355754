// Package storage persists scheduled notifications in SQLite.
//
// The Store is the single durable source of truth; the runtime scheduler
// rebuilds its in-memory registry from it on every start.
package storage
