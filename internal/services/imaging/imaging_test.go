package imaging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"mediaforge/internal/config"
	"mediaforge/internal/services"
)

type fakeRunner struct {
	calls  []string
	failOn string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.Contains(call, f.failOn) {
		return errors.New("simulated tool failure")
	}
	return nil
}

func testConfig() config.Imaging {
	return config.Imaging{
		ConvertCommand:  "convert",
		ExiftoolCommand: "exiftool",
		Widths:          []int{1920, 1280, 640},
		JPEGQuality:     85,
		WebPQuality:     80,
	}
}

func TestGenerateProducesFullManifest(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	gen := New(testConfig(), root, nil, WithRunner(runner))

	manifest, err := gen.Generate(context.Background(), "/media/source.jpg", "red-bicycle")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(manifest) != 6 {
		t.Fatalf("expected 6 derivatives, got %d", len(manifest))
	}

	wantPaths := map[string]bool{
		filepath.Join("images", "red-bicycle-1920w.jpg"):  false,
		filepath.Join("images", "red-bicycle-1920w.webp"): false,
		filepath.Join("images", "red-bicycle-1280w.jpg"):  false,
		filepath.Join("images", "red-bicycle-1280w.webp"): false,
		filepath.Join("images", "red-bicycle-640w.jpg"):   false,
		filepath.Join("images", "red-bicycle-640w.webp"):  false,
	}
	for _, file := range manifest {
		if _, ok := wantPaths[file.Path]; !ok {
			t.Errorf("unexpected manifest path %q", file.Path)
		}
		wantPaths[file.Path] = true
		if file.Width == 0 || file.Format == "" {
			t.Errorf("incomplete manifest entry: %+v", file)
		}
	}
	for path, seen := range wantPaths {
		if !seen {
			t.Errorf("manifest missing %q", path)
		}
	}

	var converts, exiftools int
	for _, call := range runner.calls {
		switch {
		case strings.HasPrefix(call, "convert "):
			converts++
			if !strings.Contains(call, "-resize") || !strings.Contains(call, "-quality") {
				t.Errorf("convert call missing flags: %s", call)
			}
		case strings.HasPrefix(call, "exiftool "):
			exiftools++
		}
	}
	if converts != 6 || exiftools != 6 {
		t.Fatalf("expected 6 convert and 6 exiftool calls, got %d/%d", converts, exiftools)
	}
}

func TestGenerateAbortsOnFirstFailure(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{failOn: "1280w.jpg"}
	gen := New(testConfig(), root, nil, WithRunner(runner))

	manifest, err := gen.Generate(context.Background(), "/media/source.jpg", "red-bicycle")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool classification, got %v", err)
	}
	if manifest != nil {
		t.Fatalf("partial manifest returned: %+v", manifest)
	}
	for _, call := range runner.calls {
		if strings.Contains(call, "640w") {
			t.Fatalf("later width attempted after failure: %s", call)
		}
	}
}

func TestGenerateToleratesMetadataFailure(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{failOn: "exiftool"}
	gen := New(testConfig(), root, nil, WithRunner(runner))

	manifest, err := gen.Generate(context.Background(), "/media/source.jpg", "red-bicycle")
	if err != nil {
		t.Fatalf("metadata failures should not abort generation: %v", err)
	}
	if len(manifest) != 6 {
		t.Fatalf("expected full manifest, got %d entries", len(manifest))
	}
}

func TestGenerateRequiresBaseName(t *testing.T) {
	gen := New(testConfig(), t.TempDir(), nil, WithRunner(&fakeRunner{}))
	if _, err := gen.Generate(context.Background(), "/media/source.jpg", "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCanonicalDerivative(t *testing.T) {
	gen := New(testConfig(), "/out", nil, WithRunner(&fakeRunner{}))
	want := filepath.Join("/out", "images", "red-bicycle-640w.jpg")
	if got := gen.CanonicalDerivative("red-bicycle"); got != want {
		t.Fatalf("canonical derivative = %q, want %q", got, want)
	}
}

func TestGenerateQualityFlags(t *testing.T) {
	runner := &fakeRunner{}
	gen := New(testConfig(), t.TempDir(), nil, WithRunner(runner))
	if _, err := gen.Generate(context.Background(), "/media/s.jpg", "b"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	var sawJPEG, sawWebP bool
	for _, call := range runner.calls {
		if strings.Contains(call, fmt.Sprintf("-quality %d", 85)) && strings.Contains(call, ".jpg") {
			sawJPEG = true
		}
		if strings.Contains(call, fmt.Sprintf("-quality %d", 80)) && strings.Contains(call, ".webp") {
			sawWebP = true
		}
	}
	if !sawJPEG || !sawWebP {
		t.Fatalf("quality flags not applied per format: %v", runner.calls)
	}
}
