// Package store persists asset records behind a backend-neutral interface
// with an explicit concurrency-safety contract: every Upsert is an
// atomically-scoped read-modify-write, so concurrent pipeline runs serialize
// on the store instead of silently dropping each other's updates.
//
// Two backends exist. The JSON file store is the default and matches the
// documented index format: one diffable JSON array, guarded by an advisory
// file lock and written via temp-file rename. The SQLite store trades the
// diffable file for database-grade locking and suits setups where several CI
// runners process assets at once.
package store
