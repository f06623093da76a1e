package pipeline

import (
	"path/filepath"
	"testing"

	"mediaforge/internal/asset"
	"mediaforge/internal/testsupport"
)

func TestShouldRun(t *testing.T) {
	record := asset.NewRecord("h1", "a.jpg")
	if !shouldRun(record, asset.StageNaming) {
		t.Fatal("pending stage must run")
	}
	record.MarkCompleted(asset.StageNaming)
	if shouldRun(record, asset.StageNaming) {
		t.Fatal("completed stage must not run")
	}
	if !shouldRun(record, asset.StageImageDerivatives) {
		t.Fatal("other stages unaffected")
	}
}

func TestPageDependencyMet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	images := &fakeImages{root: cfg.Paths.OutputDir}
	p := New(cfg, nil, nil, images, nil, nil, nil, nil)

	record := asset.NewRecord("h1", "a.jpg")
	record.BaseName = "red-bicycle"

	if p.pageDependencyMet(record) {
		t.Fatal("no flag, no file: gate must hold")
	}

	record.MarkCompleted(asset.StageImageDerivatives)
	if !p.pageDependencyMet(record) {
		t.Fatal("completion flag must open the gate")
	}
}

func TestPageDependencyDiskFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	images := &fakeImages{root: cfg.Paths.OutputDir}
	p := New(cfg, nil, nil, images, nil, nil, nil, nil)

	record := asset.NewRecord("h1", "a.jpg")
	record.BaseName = "red-bicycle"

	// Only the canonical path opens the gate; other derivatives do not.
	testsupport.WriteFile(t,
		filepath.Join(cfg.Paths.OutputDir, "images", "red-bicycle-1920w.jpg"), []byte("x"))
	if p.pageDependencyMet(record) {
		t.Fatal("non-canonical derivative must not open the gate")
	}

	testsupport.WriteFile(t,
		filepath.Join(cfg.Paths.OutputDir, "images", "red-bicycle-640w.jpg"), []byte("x"))
	if !p.pageDependencyMet(record) {
		t.Fatal("canonical derivative on disk must open the gate")
	}
}

func TestPageDependencyRequiresBaseName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := New(cfg, nil, nil, &fakeImages{root: cfg.Paths.OutputDir}, nil, nil, nil, nil)
	record := asset.NewRecord("h1", "a.jpg")
	if p.pageDependencyMet(record) {
		t.Fatal("gate must hold without a base name")
	}
}
