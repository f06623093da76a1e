// Package asset defines the persisted data model for processed media assets:
// the per-identity Record, the closed vocabulary of pipeline stages, and the
// typed set of completed stages that drives idempotent re-runs.
package asset
