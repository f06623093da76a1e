package pipeline

import (
	"mediaforge/internal/asset"
	"mediaforge/internal/fileutil"
)

// shouldRun is the step gate: a stage runs unless the record shows it durably
// complete.
func shouldRun(record *asset.Record, stage asset.Stage) bool {
	return !record.HasCompleted(stage)
}

// pageDependencyMet reports whether page generation may proceed. The normal
// signal is the image-derivatives completion flag. A prior run may have
// written every derivative and crashed before persisting that flag, so as a
// bounded recovery check the gate also accepts the canonical derivative
// existing on disk. Exactly one well-known path is consulted; this is not a
// general reconciliation pass and must not grow into one.
func (p *Pipeline) pageDependencyMet(record *asset.Record) bool {
	if record.HasCompleted(asset.StageImageDerivatives) {
		return true
	}
	if record.BaseName == "" {
		return false
	}
	return fileutil.FileExists(p.images.CanonicalDerivative(record.BaseName))
}
