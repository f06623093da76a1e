package page

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaforge/internal/asset"
	"mediaforge/internal/config"
	"mediaforge/internal/services"
)

func imageManifest() []asset.ImageFile {
	return []asset.ImageFile{
		{Format: "jpg", Width: 1920, Path: "images/red-bicycle-1920w.jpg"},
		{Format: "webp", Width: 1920, Path: "images/red-bicycle-1920w.webp"},
		{Format: "jpg", Width: 1280, Path: "images/red-bicycle-1280w.jpg"},
		{Format: "webp", Width: 1280, Path: "images/red-bicycle-1280w.webp"},
		{Format: "jpg", Width: 640, Path: "images/red-bicycle-640w.jpg"},
		{Format: "webp", Width: 640, Path: "images/red-bicycle-640w.webp"},
	}
}

func renderToString(t *testing.T, in Input) (string, string) {
	t.Helper()
	root := t.TempDir()
	renderer, err := New(config.Page{}, root, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	relative, err := renderer.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, relative))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	return relative, string(data)
}

func TestRenderImagePage(t *testing.T) {
	relative, html := renderToString(t, Input{
		BaseName:     "red-bicycle",
		Description:  "A red bicycle leans against a wall.",
		Type:         asset.TypeImage,
		ImageFiles:   imageManifest(),
		RawURLPrefix: "https://raw.githubusercontent.com/acme/media/main/processed_media",
	})

	if relative != filepath.Join("html", "red-bicycle.html") {
		t.Fatalf("unexpected page path %q", relative)
	}
	for _, want := range []string{
		`<source type="image/webp"`,
		`<source type="image/jpeg"`,
		"https://raw.githubusercontent.com/acme/media/main/processed_media/images/red-bicycle-640w.webp 640w",
		"red-bicycle-640w.webp 640w, https://raw.githubusercontent.com/acme/media/main/processed_media/images/red-bicycle-1280w.webp 1280w",
		`<img src="https://raw.githubusercontent.com/acme/media/main/processed_media/images/red-bicycle-640w.jpg"`,
		`alt="A red bicycle leans against a wall."`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<video") {
		t.Fatal("image page rendered a video element")
	}
}

func TestRenderVideoPage(t *testing.T) {
	_, html := renderToString(t, Input{
		BaseName:    "harbor-sunset",
		Description: "Boats at dusk.",
		Type:        asset.TypeVideo,
		VideoFiles: []asset.VideoFile{
			{Format: "mp4", Height: 720, Path: "videos/harbor-sunset-720p.mp4"},
			{Format: "webm", Height: 1080, Path: "videos/harbor-sunset-1080p.webm"},
			{Format: "mp4", Height: 1080, Path: "videos/harbor-sunset-1080p.mp4"},
			{Format: "webm", Height: 720, Path: "videos/harbor-sunset-720p.webm"},
		},
	})

	if !strings.Contains(html, "<video controls") {
		t.Fatalf("missing video element:\n%s", html)
	}
	webm1080 := strings.Index(html, "harbor-sunset-1080p.webm")
	mp41080 := strings.Index(html, "harbor-sunset-1080p.mp4")
	mp4720 := strings.Index(html, "harbor-sunset-720p.mp4")
	if webm1080 == -1 || mp41080 == -1 || mp4720 == -1 {
		t.Fatalf("sources missing:\n%s", html)
	}
	if !(webm1080 < mp41080 && mp41080 < mp4720) {
		t.Fatalf("source order wrong (want webm-first, largest-first):\n%s", html)
	}
	if !strings.Contains(html, `src="../videos/harbor-sunset-1080p.webm"`) {
		t.Fatalf("expected relative URLs without a raw prefix:\n%s", html)
	}
}

func TestRenderEscapesDescription(t *testing.T) {
	_, html := renderToString(t, Input{
		BaseName:    "tricky",
		Description: `He said "hello" & left <fast>.`,
		Type:        asset.TypeImage,
		ImageFiles:  imageManifest(),
	})
	if strings.Contains(html, "<fast>") {
		t.Fatalf("description not escaped:\n%s", html)
	}
	if !strings.Contains(html, "&lt;fast&gt;") {
		t.Fatalf("expected escaped markup in alt text:\n%s", html)
	}
}

func TestRenderRequiresBaseName(t *testing.T) {
	renderer, err := New(config.Page{}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := renderer.Render(context.Background(), Input{Type: asset.TypeImage}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderTemplateOverride(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.tmpl")
	if err := os.WriteFile(custom, []byte("custom page for {{.Title}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	renderer, err := New(config.Page{TemplatePath: custom}, dir, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	relative, err := renderer.Render(context.Background(), Input{BaseName: "x", Type: asset.TypeImage})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, relative))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if string(data) != "custom page for x" {
		t.Fatalf("override not used: %q", data)
	}
}

func TestNewRejectsMissingTemplate(t *testing.T) {
	if _, err := New(config.Page{TemplatePath: "/nonexistent/tmpl"}, t.TempDir(), nil); err == nil {
		t.Fatal("expected error for missing template override")
	}
}
