package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaforge/internal/asset"
	"mediaforge/internal/config"
	"mediaforge/internal/identity"
	"mediaforge/internal/services"
	"mediaforge/internal/services/describer"
	"mediaforge/internal/services/page"
	"mediaforge/internal/testsupport"
)

type fakeNamer struct {
	calls  int
	result describer.Result
	err    error
}

func (f *fakeNamer) Describe(_ context.Context, _, outputDir string) (describer.Result, error) {
	f.calls++
	if f.err != nil {
		return describer.Result{}, f.err
	}
	result := f.result
	if result.DescriptionPath == "" {
		result.DescriptionPath = filepath.Join(outputDir, result.BaseName+".md")
	}
	return result, nil
}

type fakeImages struct {
	root     string
	calls    int
	manifest []asset.ImageFile
	err      error
}

func (f *fakeImages) Generate(_ context.Context, _, baseName string) ([]asset.ImageFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.manifest != nil {
		return f.manifest, nil
	}
	return []asset.ImageFile{
		{Format: "jpg", Width: 640, Path: "images/" + baseName + "-640w.jpg"},
		{Format: "webp", Width: 640, Path: "images/" + baseName + "-640w.webp"},
	}, nil
}

func (f *fakeImages) CanonicalDerivative(baseName string) string {
	return filepath.Join(f.root, "images", baseName+"-640w.jpg")
}

type fakeVideos struct {
	calls int
	err   error
}

func (f *fakeVideos) Transcode(_ context.Context, _, baseName string) ([]asset.VideoFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []asset.VideoFile{
		{Format: "mp4", Height: 720, Path: "videos/" + baseName + "-720p.mp4"},
		{Format: "webm", Height: 720, Path: "videos/" + baseName + "-720p.webm"},
	}, nil
}

type fakePages struct {
	calls int
	last  page.Input
	err   error
}

func (f *fakePages) Render(_ context.Context, in page.Input) (string, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join("html", in.BaseName+".html"), nil
}

type fakeNotifier struct {
	completed []string
	failed    []string
}

func (f *fakeNotifier) AssetComplete(_ context.Context, identityToken, _ string) {
	f.completed = append(f.completed, identityToken)
}

func (f *fakeNotifier) AssetFailed(_ context.Context, identityToken string, _ error) {
	f.failed = append(f.failed, identityToken)
}

type harness struct {
	cfg      *config.Config
	pipeline *Pipeline
	namer    *fakeNamer
	images   *fakeImages
	videos   *fakeVideos
	pages    *fakePages
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.NewStore(t, cfg)

	h := &harness{
		cfg:      cfg,
		namer:    &fakeNamer{result: describer.Result{BaseName: "red-bicycle"}},
		images:   &fakeImages{root: cfg.Paths.OutputDir},
		videos:   &fakeVideos{},
		pages:    &fakePages{},
		notifier: &fakeNotifier{},
	}
	h.pipeline = New(cfg, st, h.namer, h.images, h.videos, h.pages, h.notifier, nil)
	return h
}

func (h *harness) process(t *testing.T, req Request) *Result {
	t.Helper()
	result, err := h.pipeline.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return result
}

func TestProcessNewImageAsset(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")
	testsupport.WriteFile(t, filepath.Join(h.cfg.DescriptionsDir(), "red-bicycle.md"),
		[]byte("A red bicycle leans against a wall.\n"))

	result := h.process(t, Request{SourcePath: source, Repo: "acme/media", Ref: "main"})

	record := result.Record
	if record.BaseName != "red-bicycle" {
		t.Fatalf("base name = %q", record.BaseName)
	}
	for _, stage := range []asset.Stage{asset.StageNaming, asset.StageImageDerivatives, asset.StagePageGeneration} {
		if !record.HasCompleted(stage) {
			t.Errorf("stage %s not complete", stage)
		}
	}
	if record.Type != asset.TypeImage || record.Outputs.Type != asset.TypeImage {
		t.Fatalf("type not classified: %s / %s", record.Type, record.Outputs.Type)
	}
	if len(record.Outputs.ImageFiles) == 0 || record.Outputs.PagePath == "" {
		t.Fatalf("outputs incomplete: %+v", record.Outputs)
	}
	if h.pages.last.Description != "A red bicycle leans against a wall." {
		t.Fatalf("page description = %q", h.pages.last.Description)
	}
	if h.pages.last.RawURLPrefix != h.cfg.Page.RawURLBase+"/acme/media/main/processed_media" {
		t.Fatalf("raw url prefix = %q", h.pages.last.RawURLPrefix)
	}
	if !result.Complete() {
		t.Fatal("result should report the asset complete")
	}
	if len(h.notifier.completed) != 1 {
		t.Fatalf("completion notification not sent: %+v", h.notifier)
	}

	// The record must be durably persisted under its content identity.
	st := testsupport.NewStore(t, h.cfg)
	stored, err := st.Get(context.Background(), record.Identity)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if !stored.HasCompleted(asset.StagePageGeneration) {
		t.Fatalf("persisted record lost stage state: %v", stored.CompletedStages.Sorted())
	}
}

func TestProcessSecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	first := h.process(t, Request{SourcePath: source})
	before := first.Record.CompletedStages.Sorted()

	second := h.process(t, Request{SourcePath: source})
	if h.namer.calls != 1 || h.images.calls != 1 || h.pages.calls != 1 {
		t.Fatalf("second run redid work: namer=%d images=%d pages=%d",
			h.namer.calls, h.images.calls, h.pages.calls)
	}
	if len(second.Ran) != 0 {
		t.Fatalf("second run reports stages run: %v", second.Ran)
	}
	after := second.Record.CompletedStages.Sorted()
	if len(before) != len(after) {
		t.Fatalf("completed stages changed: %v -> %v", before, after)
	}
}

func TestNamingFailureFallsBackAndContinues(t *testing.T) {
	h := newHarness(t)
	h.namer.err = services.Wrap(services.ErrExternalTool, "naming", "describe", "api down", nil)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	result := h.process(t, Request{SourcePath: source})

	record := result.Record
	want := identity.Fallback(record.Identity, "script-failed")
	if record.BaseName != want {
		t.Fatalf("fallback name = %q, want %q", record.BaseName, want)
	}
	if record.HasCompleted(asset.StageNaming) {
		t.Fatal("failed naming must stay pending")
	}
	if !record.HasCompleted(asset.StageImageDerivatives) {
		t.Fatal("derivatives should proceed under the fallback name")
	}
	if h.pages.last.BaseName != want {
		t.Fatalf("page rendered under %q", h.pages.last.BaseName)
	}
	if len(result.Failures) == 0 || result.Failures[0].Stage != asset.StageNaming {
		t.Fatalf("naming failure not reported: %+v", result.Failures)
	}
	if result.Complete() {
		t.Fatal("asset must not report complete while naming is pending")
	}
}

func TestNamingFallbackIsDeterministicAcrossRuns(t *testing.T) {
	h := newHarness(t)
	h.namer.err = services.Wrap(services.ErrExternalTool, "naming", "describe", "api down", nil)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	first := h.process(t, Request{SourcePath: source})
	second := h.process(t, Request{SourcePath: source})
	if first.Record.BaseName != second.Record.BaseName {
		t.Fatalf("fallback name changed across runs: %q vs %q",
			first.Record.BaseName, second.Record.BaseName)
	}
	if h.namer.calls != 2 {
		t.Fatalf("pending naming should be retried, calls=%d", h.namer.calls)
	}
}

func TestRawURLPrefixIncludesContentDir(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	h.process(t, Request{SourcePath: source, Repo: "acme/media", Ref: "v2"})
	want := h.cfg.Page.RawURLBase + "/acme/media/v2/processed_media"
	if h.pages.last.RawURLPrefix != want {
		t.Fatalf("raw url prefix = %q, want %q", h.pages.last.RawURLPrefix, want)
	}
}

func TestRawURLPrefixWithoutContentDir(t *testing.T) {
	h := newHarness(t)
	h.cfg.Page.ContentDir = ""
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	h.process(t, Request{SourcePath: source, Repo: "acme/media", Ref: "main"})
	want := h.cfg.Page.RawURLBase + "/acme/media/main"
	if h.pages.last.RawURLPrefix != want {
		t.Fatalf("raw url prefix = %q, want %q", h.pages.last.RawURLPrefix, want)
	}
}

func TestNamingUnexpectedFailureUsesExceptionReason(t *testing.T) {
	h := newHarness(t)
	h.namer.err = errors.New("nil pointer somewhere")
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	result := h.process(t, Request{SourcePath: source})
	want := identity.Fallback(result.Record.Identity, "exception")
	if result.Record.BaseName != want {
		t.Fatalf("fallback name = %q, want %q", result.Record.BaseName, want)
	}
}

func TestNamingFailureArtifactMatchesFallbackName(t *testing.T) {
	h := newHarness(t)
	h.namer.err = errors.New("nil pointer somewhere")
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	result := h.process(t, Request{SourcePath: source})
	record := result.Record

	// The error artifact must carry the same fallback name as the record, not
	// a differently classified one.
	want := filepath.Join(h.cfg.DescriptionsDir(), record.BaseName+".md")
	if record.DescriptionPath != want {
		t.Fatalf("description path = %q, want %q", record.DescriptionPath, want)
	}
	data, err := os.ReadFile(record.DescriptionPath)
	if err != nil {
		t.Fatalf("error artifact not written: %v", err)
	}
	if !strings.Contains(string(data), "Description unavailable") {
		t.Fatalf("unexpected artifact content: %q", data)
	}
}

func TestImageDerivativeFailureIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	h.images.err = services.Wrap(services.ErrExternalTool, "image_derivatives", "convert", "width 1280", nil)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	result := h.process(t, Request{SourcePath: source})

	record := result.Record
	if record.HasCompleted(asset.StageImageDerivatives) {
		t.Fatal("partially failed stage must not be marked complete")
	}
	if len(record.Outputs.ImageFiles) != 0 {
		t.Fatalf("partial manifest recorded: %+v", record.Outputs.ImageFiles)
	}
	if h.pages.calls != 0 {
		t.Fatal("page generation ran without its dependency")
	}

	// Retry regenerates the whole stage.
	h.images.err = nil
	retry := h.process(t, Request{SourcePath: source})
	if !retry.Record.HasCompleted(asset.StageImageDerivatives) {
		t.Fatal("retry did not complete the stage")
	}
	if h.images.calls != 2 {
		t.Fatalf("expected full stage retry, calls=%d", h.images.calls)
	}
}

func TestResumabilitySkipsCompletedStages(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	token, err := identity.FromFile(source)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	seeded := asset.NewRecord(token, source)
	seeded.BaseName = "red-bicycle"
	seeded.Type = asset.TypeImage
	seeded.MarkCompleted(asset.StageNaming)
	seeded.MarkCompleted(asset.StageImageDerivatives)
	st := testsupport.NewStore(t, h.cfg)
	testsupport.SeedRecord(t, st, seeded)

	result := h.process(t, Request{SourcePath: source})
	if h.namer.calls != 0 || h.images.calls != 0 {
		t.Fatalf("completed stages were re-run: namer=%d images=%d", h.namer.calls, h.images.calls)
	}
	if h.pages.calls != 1 {
		t.Fatalf("pending page stage did not run, calls=%d", h.pages.calls)
	}
	if !result.Record.HasCompleted(asset.StagePageGeneration) {
		t.Fatal("page stage not completed")
	}
}

func TestPageGateAcceptsCanonicalFileOnDisk(t *testing.T) {
	h := newHarness(t)
	h.images.err = services.Wrap(services.ErrExternalTool, "image_derivatives", "convert", "", nil)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	// Simulate a prior run that wrote every derivative but crashed before
	// persisting the stage flag.
	testsupport.WriteFile(t,
		filepath.Join(h.cfg.Paths.OutputDir, "images", "red-bicycle-640w.jpg"),
		[]byte("jpeg"))

	result := h.process(t, Request{SourcePath: source})
	if result.Record.HasCompleted(asset.StageImageDerivatives) {
		t.Fatal("failed derivative stage must stay pending")
	}
	if !result.Record.HasCompleted(asset.StagePageGeneration) {
		t.Fatal("page stage should run off the canonical derivative on disk")
	}
}

func TestProcessVideoAsset(t *testing.T) {
	h := newHarness(t)
	h.namer.result = describer.Result{BaseName: "harbor-sunset"}
	source := testsupport.WriteSource(t, t.TempDir(), "clip.mp4")

	result := h.process(t, Request{SourcePath: source})

	record := result.Record
	if record.Type != asset.TypeVideo {
		t.Fatalf("type = %s", record.Type)
	}
	if !record.HasCompleted(asset.StageVideoDerivatives) {
		t.Fatal("video stage not completed")
	}
	if record.HasCompleted(asset.StagePageGeneration) || h.pages.calls != 0 {
		t.Fatal("video assets have no page stage")
	}
	if len(record.Outputs.VideoFiles) != 2 {
		t.Fatalf("video manifest: %+v", record.Outputs.VideoFiles)
	}
	if !result.Complete() {
		t.Fatal("video asset should report complete")
	}
}

func TestProcessUnknownTypeRecordsTypeOnly(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "notes.txt")

	result := h.process(t, Request{SourcePath: source})
	record := result.Record
	if record.Type != asset.TypeUnknown {
		t.Fatalf("type = %s", record.Type)
	}
	if h.images.calls != 0 || h.videos.calls != 0 || h.pages.calls != 0 {
		t.Fatal("derivative stages ran for unknown type")
	}
	if !record.HasCompleted(asset.StageNaming) {
		t.Fatal("naming still applies to unknown types")
	}

	st := testsupport.NewStore(t, h.cfg)
	if _, err := st.Get(context.Background(), record.Identity); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestProcessIdentityMismatchIsFatal(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	wrong := identity.FromBytes([]byte("other content"))
	_, err := h.pipeline.Process(context.Background(), Request{SourcePath: source, Identity: wrong})
	if err == nil || !services.IsFatal(err) {
		t.Fatalf("expected fatal identity mismatch, got %v", err)
	}
	if h.namer.calls != 0 {
		t.Fatal("no stage may run after a fatal identity failure")
	}
}

func TestProcessTrustedIdentitySkipsHashing(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	supplied := identity.FromBytes([]byte("precomputed elsewhere"))
	result := h.process(t, Request{SourcePath: source, Identity: supplied, TrustIdentity: true})
	if result.Record.Identity != supplied {
		t.Fatalf("trusted identity not used: %s", result.Record.Identity)
	}
}

func TestProcessIdentityStability(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	one := testsupport.WriteSource(t, dir, "a.jpg")
	content, err := os.ReadFile(one)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	other := filepath.Join(dir, "renamed.jpg")
	testsupport.WriteFile(t, other, content)

	first := h.process(t, Request{SourcePath: one})
	second := h.process(t, Request{SourcePath: other})
	if first.Record.Identity != second.Record.Identity {
		t.Fatalf("byte-identical files got different identities: %s vs %s",
			first.Record.Identity, second.Record.Identity)
	}
	if second.Record.SourcePath != other {
		t.Fatalf("source path not refreshed: %s", second.Record.SourcePath)
	}
}

func TestProcessCorruptIndexTreatedAsEmpty(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteFile(t, h.cfg.Paths.IndexPath, []byte("{definitely not json"))
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	result := h.process(t, Request{SourcePath: source})
	if !result.Record.HasCompleted(asset.StageNaming) {
		t.Fatal("processing should proceed from empty state")
	}
}

func TestNamingFlagWithoutNameRecovers(t *testing.T) {
	h := newHarness(t)
	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")

	token, err := identity.FromFile(source)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	damaged := asset.NewRecord(token, source)
	damaged.MarkCompleted(asset.StageNaming)
	st := testsupport.NewStore(t, h.cfg)
	testsupport.SeedRecord(t, st, damaged)

	result := h.process(t, Request{SourcePath: source})
	want := identity.Fallback(token, "recovery")
	if result.Record.BaseName != want {
		t.Fatalf("recovery name = %q, want %q", result.Record.BaseName, want)
	}
	if h.namer.calls != 0 {
		t.Fatal("flagged-complete naming must not be re-run")
	}
	if !result.Record.HasCompleted(asset.StageImageDerivatives) {
		t.Fatal("derivatives should proceed under the recovery name")
	}
}

func TestProcessWithSQLiteBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStoreBackend("sqlite"))
	st := testsupport.NewStore(t, cfg)
	namer := &fakeNamer{result: describer.Result{BaseName: "red-bicycle"}}
	images := &fakeImages{root: cfg.Paths.OutputDir}
	p := New(cfg, st, namer, images, &fakeVideos{}, &fakePages{}, nil, nil)

	source := testsupport.WriteSource(t, t.TempDir(), "a.jpg")
	result, err := p.Process(context.Background(), Request{SourcePath: source})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, err := st.Get(context.Background(), result.Record.Identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.HasCompleted(asset.StagePageGeneration) {
		t.Fatalf("sqlite-backed run incomplete: %v", stored.CompletedStages.Sorted())
	}
}
