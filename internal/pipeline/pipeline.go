package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediaforge/internal/asset"
	"mediaforge/internal/asset/store"
	"mediaforge/internal/config"
	"mediaforge/internal/identity"
	"mediaforge/internal/logging"
	"mediaforge/internal/services"
	"mediaforge/internal/services/describer"
	"mediaforge/internal/services/page"
)

// Request describes one asset-processing invocation.
type Request struct {
	SourcePath string
	// Identity optionally pre-supplies the content hash. It is verified
	// against the file unless TrustIdentity is set.
	Identity      string
	TrustIdentity bool
	// Repo and Ref address the repository hosting the derivatives, used to
	// build raw content URLs in the embed page.
	Repo string
	Ref  string
}

// StageFailure records a recoverable executor failure; the stage stays
// pending for the next run.
type StageFailure struct {
	Stage asset.Stage
	Err   error
}

// Result summarizes one run over one asset.
type Result struct {
	RunID    string
	Record   *asset.Record
	Ran      []asset.Stage
	Failures []StageFailure
}

// Complete reports whether every stage applicable to the asset's type has
// durably completed.
func (r *Result) Complete() bool {
	if r.Record == nil {
		return false
	}
	required := []asset.Stage{asset.StageNaming}
	switch r.Record.Type {
	case asset.TypeImage:
		required = append(required, asset.StageImageDerivatives, asset.StagePageGeneration)
	case asset.TypeVideo:
		required = append(required, asset.StageVideoDerivatives)
	}
	for _, stage := range required {
		if !r.Record.HasCompleted(stage) {
			return false
		}
	}
	return true
}

// Pipeline orchestrates the per-asset stage sequence against a record store
// and the stage executors.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	namer    Namer
	images   ImageGenerator
	videos   VideoTranscoder
	pages    PageRenderer
	notifier Notifier
	logger   *slog.Logger
}

// New wires the orchestrator. A nil notifier is replaced with a no-op.
func New(cfg *config.Config, st store.Store, namer Namer, images ImageGenerator,
	videos VideoTranscoder, pages PageRenderer, notifier Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		namer:    namer,
		images:   images,
		videos:   videos,
		pages:    pages,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process runs every still-pending stage for one asset. Recoverable executor
// failures are collected on the Result and leave their stage pending; the
// returned error is non-nil only for fatal conditions (unverifiable input,
// unwritable store), which abort the asset and should surface a non-zero
// exit. The record is persisted after creation and after every stage
// transition, so an interruption loses at most one in-flight stage.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, result.RunID)
	logger := p.logger.With(logging.String("run_id", result.RunID))

	token, err := p.resolveIdentity(req)
	if err != nil {
		return result, err
	}
	ctx = services.WithAsset(ctx, token)
	logger = logger.With(logging.String("asset", identity.Short(token)))

	if err := p.cfg.EnsureDirectories(); err != nil {
		return result, services.Wrap(services.ErrFatal, "", "bootstrap", "create output directories", err)
	}

	record, err := p.loadOrCreate(ctx, token, req.SourcePath)
	if err != nil {
		return result, err
	}
	result.Record = record
	logger.Info("processing asset",
		logging.String("source", req.SourcePath),
		logging.String("type", string(record.Type)),
		logging.Any("completed", record.CompletedStages.Sorted()))

	if err := p.persist(ctx, record); err != nil {
		return result, err
	}

	if err := p.runNaming(ctx, req, record, result, logger); err != nil {
		p.notifier.AssetFailed(ctx, token, err)
		return result, err
	}

	switch record.Type {
	case asset.TypeImage:
		p.runImageStages(ctx, req, record, result, logger)
	case asset.TypeVideo:
		p.runVideoStage(ctx, req, record, result, logger)
	default:
		logger.Info("unknown asset type, no derivative stages",
			logging.String("source", req.SourcePath))
	}

	for _, failure := range result.Failures {
		if err := failure.Err; services.IsFatal(err) {
			p.notifier.AssetFailed(ctx, token, err)
			return result, err
		}
	}

	if result.Complete() {
		p.notifier.AssetComplete(ctx, token, record.BaseName)
	}
	logger.Info("run finished",
		logging.Int("stages_run", len(result.Ran)),
		logging.Int("failures", len(result.Failures)),
		logging.Bool("complete", result.Complete()))
	return result, nil
}

func (p *Pipeline) resolveIdentity(req Request) (string, error) {
	supplied := strings.TrimSpace(req.Identity)
	if supplied != "" && !identity.Valid(supplied) {
		return "", services.Wrap(services.ErrFatal, "", "identity",
			fmt.Sprintf("supplied identity %q is not a content hash", supplied), nil)
	}
	if supplied != "" && req.TrustIdentity {
		return supplied, nil
	}

	computed, err := identity.FromFile(req.SourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "", "identity", "hash source file", err)
	}
	if supplied != "" && supplied != computed {
		return "", services.Wrap(services.ErrFatal, "", "identity",
			fmt.Sprintf("supplied identity does not match file content (%s != %s)",
				identity.Short(supplied), identity.Short(computed)), nil)
	}
	return computed, nil
}

func (p *Pipeline) loadOrCreate(ctx context.Context, token, sourcePath string) (*asset.Record, error) {
	record, err := p.store.Get(ctx, token)
	switch {
	case err == nil:
		// Source path is informational; a moved file keeps its identity.
		record.SourcePath = sourcePath
	case errors.Is(err, store.ErrNotFound):
		record = asset.NewRecord(token, sourcePath)
	default:
		return nil, services.Wrap(services.ErrFatal, "", "store", "read record", err)
	}

	record.Type = asset.ClassifyType(sourcePath)
	record.Outputs.Type = record.Type
	return record, nil
}

// persist writes the record through the store. A store that cannot be written
// at all is the one failure the pipeline cannot work around.
func (p *Pipeline) persist(ctx context.Context, record *asset.Record) error {
	record.Touch()
	if err := p.store.Upsert(ctx, record); err != nil {
		return services.Wrap(services.ErrFatal, "", "store", "persist record", err)
	}
	return nil
}

// runNaming attempts the naming stage when pending. Failure is non-fatal: a
// deterministic fallback name derived from the identity lets derivative
// stages proceed, while the pending flag keeps naming eligible for retry.
func (p *Pipeline) runNaming(ctx context.Context, req Request, record *asset.Record, result *Result, logger *slog.Logger) error {
	if !shouldRun(record, asset.StageNaming) {
		if record.BaseName == "" {
			// Completion flag without a name means the record was damaged
			// out-of-band. Recover with a deterministic name instead of
			// failing every later stage.
			record.BaseName = identity.Fallback(record.Identity, "recovery")
			logger.Warn("naming flagged complete but record has no base name, using recovery fallback",
				logging.String("base_name", record.BaseName))
			return p.persist(ctx, record)
		}
		return nil
	}

	stageCtx := services.WithStage(ctx, string(asset.StageNaming))
	result.Ran = append(result.Ran, asset.StageNaming)

	named, err := p.namer.Describe(stageCtx, req.SourcePath, p.cfg.DescriptionsDir())
	if err != nil {
		reason := "exception"
		if errors.Is(err, services.ErrExternalTool) || errors.Is(err, services.ErrTimeout) || errors.Is(err, services.ErrTransient) {
			reason = "script-failed"
		}
		record.BaseName = identity.Fallback(record.Identity, reason)
		// The error artifact carries the same fallback name as the record, so
		// page generation has a description source to point at.
		if stubPath, stubErr := describer.WriteErrorArtifact(p.cfg.DescriptionsDir(), record.BaseName, err); stubErr == nil {
			record.DescriptionPath = stubPath
		}
		result.Failures = append(result.Failures, StageFailure{Stage: asset.StageNaming, Err: err})
		logger.Warn("naming failed, continuing with fallback name",
			logging.String("base_name", record.BaseName),
			logging.Error(err))
		return p.persist(ctx, record)
	}

	record.BaseName = named.BaseName
	record.DescriptionPath = named.DescriptionPath
	record.MarkCompleted(asset.StageNaming)
	logger.Info("naming complete", logging.String("base_name", record.BaseName))
	return p.persist(ctx, record)
}

func (p *Pipeline) runImageStages(ctx context.Context, req Request, record *asset.Record, result *Result, logger *slog.Logger) {
	if record.BaseName == "" {
		logger.Warn("no base name available, skipping derivative stages")
		return
	}

	if shouldRun(record, asset.StageImageDerivatives) {
		stageCtx := services.WithStage(ctx, string(asset.StageImageDerivatives))
		result.Ran = append(result.Ran, asset.StageImageDerivatives)

		manifest, err := p.images.Generate(stageCtx, req.SourcePath, record.BaseName)
		if err != nil {
			result.Failures = append(result.Failures, StageFailure{Stage: asset.StageImageDerivatives, Err: err})
			logger.Warn("image derivative generation failed, stage stays pending", logging.Error(err))
		} else {
			record.Outputs.ImageFiles = manifest
			record.MarkCompleted(asset.StageImageDerivatives)
			logger.Info("image derivatives complete", logging.Int("files", len(manifest)))
			if err := p.persist(ctx, record); err != nil {
				result.Failures = append(result.Failures, StageFailure{Stage: asset.StageImageDerivatives, Err: err})
				return
			}
		}
	} else {
		logger.Info("image derivatives already complete, skipping")
	}

	p.runPageStage(ctx, req, record, result, logger)
}

func (p *Pipeline) runPageStage(ctx context.Context, req Request, record *asset.Record, result *Result, logger *slog.Logger) {
	if !shouldRun(record, asset.StagePageGeneration) {
		logger.Info("page already generated, skipping")
		return
	}
	if !p.pageDependencyMet(record) {
		logger.Info("image derivatives not observable yet, page generation deferred")
		return
	}

	stageCtx := services.WithStage(ctx, string(asset.StagePageGeneration))
	result.Ran = append(result.Ran, asset.StagePageGeneration)

	pagePath, err := p.pages.Render(stageCtx, page.Input{
		BaseName:     record.BaseName,
		Description:  p.descriptionFor(record, logger),
		Type:         record.Type,
		ImageFiles:   record.Outputs.ImageFiles,
		VideoFiles:   record.Outputs.VideoFiles,
		RawURLPrefix: p.rawURLPrefix(req),
	})
	if err != nil {
		result.Failures = append(result.Failures, StageFailure{Stage: asset.StagePageGeneration, Err: err})
		logger.Warn("page generation failed, stage stays pending", logging.Error(err))
		return
	}

	record.Outputs.PagePath = pagePath
	record.MarkCompleted(asset.StagePageGeneration)
	logger.Info("page generated", logging.String("page", pagePath))
	if err := p.persist(ctx, record); err != nil {
		result.Failures = append(result.Failures, StageFailure{Stage: asset.StagePageGeneration, Err: err})
	}
}

func (p *Pipeline) runVideoStage(ctx context.Context, req Request, record *asset.Record, result *Result, logger *slog.Logger) {
	if record.BaseName == "" {
		logger.Warn("no base name available, skipping derivative stages")
		return
	}
	if !shouldRun(record, asset.StageVideoDerivatives) {
		logger.Info("video derivatives already complete, skipping")
		return
	}

	stageCtx := services.WithStage(ctx, string(asset.StageVideoDerivatives))
	result.Ran = append(result.Ran, asset.StageVideoDerivatives)

	manifest, err := p.videos.Transcode(stageCtx, req.SourcePath, record.BaseName)
	if err != nil {
		result.Failures = append(result.Failures, StageFailure{Stage: asset.StageVideoDerivatives, Err: err})
		logger.Warn("video transcoding failed, stage stays pending", logging.Error(err))
		return
	}

	record.Outputs.VideoFiles = manifest
	record.MarkCompleted(asset.StageVideoDerivatives)
	logger.Info("video derivatives complete", logging.Int("files", len(manifest)))
	if err := p.persist(ctx, record); err != nil {
		result.Failures = append(result.Failures, StageFailure{Stage: asset.StageVideoDerivatives, Err: err})
	}
}

// descriptionFor reads the long-form description artifact for page alt text.
// A missing artifact degrades to an empty description rather than blocking
// the page.
func (p *Pipeline) descriptionFor(record *asset.Record, logger *slog.Logger) string {
	path := record.DescriptionPath
	if path == "" {
		path = filepath.Join(p.cfg.DescriptionsDir(), record.BaseName+".md")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("description artifact unavailable, page gets empty alt text",
			logging.String("path", path),
			logging.Error(err))
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *Pipeline) rawURLPrefix(req Request) string {
	if strings.TrimSpace(req.Repo) == "" {
		return ""
	}
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		ref = "main"
	}
	prefix := fmt.Sprintf("%s/%s/%s", p.cfg.Page.RawURLBase, strings.Trim(req.Repo, "/"), ref)
	// Manifest paths are relative to the output root, but the committed files
	// live under the repo-relative content directory.
	if dir := strings.Trim(p.cfg.Page.ContentDir, "/"); dir != "" {
		prefix += "/" + dir
	}
	return prefix
}
