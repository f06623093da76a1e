// Package services holds cross-cutting helpers shared by the external stage
// executors: the sentinel error taxonomy used to classify failures into the
// pipeline's tri-state outcome model, and context annotation helpers that let
// logging tag lines with the asset, stage, and run currently in flight.
package services
