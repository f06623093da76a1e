package asset

import (
	"time"
)

// MediaType classifies an asset from its source file extension.
type MediaType string

const (
	TypeImage   MediaType = "image"
	TypeVideo   MediaType = "video"
	TypeUnknown MediaType = "unknown"
)

// ImageFile describes one generated image derivative.
type ImageFile struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Path   string `json:"path"`
}

// VideoFile describes one generated video derivative.
type VideoFile struct {
	Format string `json:"format"`
	Height int    `json:"height"`
	Path   string `json:"path"`
}

// Outputs is the type-specific derivative manifest recorded once the matching
// stage fully succeeds. Paths are relative to the configured output root.
type Outputs struct {
	Type       MediaType   `json:"type,omitempty"`
	PagePath   string      `json:"pagePath,omitempty"`
	ImageFiles []ImageFile `json:"imageFiles,omitempty"`
	VideoFiles []VideoFile `json:"videoFiles,omitempty"`
}

// Record is the persisted processing state for one distinct asset content.
// Identity is the primary key and immutable once assigned; everything else is
// mutated in place as pipeline runs make progress.
type Record struct {
	Identity        string    `json:"identity"`
	SourcePath      string    `json:"sourcePath"`
	BaseName        string    `json:"baseName,omitempty"`
	DescriptionPath string    `json:"descriptionPath,omitempty"`
	CompletedStages StageSet  `json:"completedStages"`
	Type            MediaType `json:"assetType,omitempty"`
	Outputs         Outputs   `json:"outputs"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewRecord creates the initial record for a newly encountered identity.
func NewRecord(identityToken, sourcePath string) *Record {
	now := time.Now().UTC()
	return &Record{
		Identity:   identityToken,
		SourcePath: sourcePath,
		Type:       TypeUnknown,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkCompleted records durable completion of a stage.
func (r *Record) MarkCompleted(stage Stage) {
	r.CompletedStages.Add(stage)
	r.Touch()
}

// HasCompleted reports whether the stage has durably completed.
func (r *Record) HasCompleted(stage Stage) bool {
	return r.CompletedStages.Has(stage)
}

// Touch updates the modification timestamp.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so store callers cannot alias internal state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.CompletedStages = r.CompletedStages.Clone()
	if r.Outputs.ImageFiles != nil {
		clone.Outputs.ImageFiles = append([]ImageFile(nil), r.Outputs.ImageFiles...)
	}
	if r.Outputs.VideoFiles != nil {
		clone.Outputs.VideoFiles = append([]VideoFile(nil), r.Outputs.VideoFiles...)
	}
	return &clone
}
