// Package pipeline sequences the processing stages for one asset: naming,
// derivative generation, and embed page rendering. It owns the idempotence
// rules — which stages still need to run, what gets persisted when, and how
// executor failures map to the run outcome.
package pipeline
