package deps

import (
	"os"
	"path/filepath"
	"testing"

	"mediaforge/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("stub binary should be available: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("missing binary should fail with detail: %+v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unset command should be reported: %+v", results[2])
	}
}

func TestRequirementsCoverConfiguredTools(t *testing.T) {
	cfg := config.Default()
	cfg.Imaging.ConvertCommand = "magick"
	reqs := Requirements(&cfg)

	byName := map[string]Requirement{}
	for _, req := range reqs {
		byName[req.Name] = req
	}
	if byName["ImageMagick"].Command != "magick" {
		t.Fatalf("configured convert command not used: %+v", byName["ImageMagick"])
	}
	if byName["FFmpeg"].Command != cfg.Video.FFmpegCommand {
		t.Fatalf("ffmpeg command mismatch: %+v", byName["FFmpeg"])
	}
	if !byName["ExifTool"].Optional {
		t.Fatal("exiftool is best-effort and should be optional")
	}
}
