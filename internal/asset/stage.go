package asset

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Stage identifies one durable unit of pipeline work. A stage is either fully
// complete for an asset or treated as not yet done; there is no partial state.
type Stage string

const (
	StageNaming           Stage = "naming"
	StageImageDerivatives Stage = "image_derivatives"
	StagePageGeneration   Stage = "page_generation"
	StageVideoDerivatives Stage = "video_derivatives"
)

var allStages = []Stage{
	StageNaming,
	StageImageDerivatives,
	StagePageGeneration,
	StageVideoDerivatives,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// AllStages returns the closed stage vocabulary in pipeline order.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage validates a stage identifier read from external input.
func ParseStage(value string) (Stage, error) {
	stage := Stage(value)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return stage, nil
}

// Valid reports whether the stage belongs to the known vocabulary.
func (s Stage) Valid() bool {
	_, ok := stageSet[s]
	return ok
}

// StageSet tracks the stages that have durably completed for one asset. The
// set only grows: the pipeline never removes a completed stage.
type StageSet struct {
	members map[Stage]struct{}
}

// NewStageSet builds a set from the provided stages.
func NewStageSet(stages ...Stage) StageSet {
	var set StageSet
	for _, stage := range stages {
		set.Add(stage)
	}
	return set
}

// Has reports whether the stage has completed.
func (s StageSet) Has(stage Stage) bool {
	_, ok := s.members[stage]
	return ok
}

// Add records a completed stage. Adding an already present stage is a no-op.
func (s *StageSet) Add(stage Stage) {
	if !stage.Valid() {
		return
	}
	if s.members == nil {
		s.members = make(map[Stage]struct{}, len(allStages))
	}
	s.members[stage] = struct{}{}
}

// Remove deletes a stage from the set. The pipeline never calls this; it
// backs the manual index reset-stage escape hatch.
func (s *StageSet) Remove(stage Stage) {
	delete(s.members, stage)
}

// Len returns the number of completed stages.
func (s StageSet) Len() int {
	return len(s.members)
}

// Sorted returns the completed stages in lexical order for stable output.
func (s StageSet) Sorted() []Stage {
	stages := make([]Stage, 0, len(s.members))
	for stage := range s.members {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// Clone returns an independent copy of the set.
func (s StageSet) Clone() StageSet {
	clone := StageSet{}
	for stage := range s.members {
		clone.Add(stage)
	}
	return clone
}

// MarshalJSON serializes the set as a sorted array of stage identifiers.
func (s StageSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON parses an array of stage identifiers, rejecting identifiers
// outside the known vocabulary so typos surface instead of silently dropping
// completion state.
func (s *StageSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := StageSet{}
	for _, value := range raw {
		stage, err := ParseStage(value)
		if err != nil {
			return err
		}
		parsed.Add(stage)
	}
	*s = parsed
	return nil
}
