package pipeline

import (
	"context"

	"mediaforge/internal/asset"
	"mediaforge/internal/services/describer"
	"mediaforge/internal/services/page"
)

// Namer produces a stable base name and a long-form description artifact for
// a source file. Implemented by describer.Client.
type Namer interface {
	Describe(ctx context.Context, sourcePath, outputDir string) (describer.Result, error)
}

// ImageGenerator produces the full image derivative set for a base name.
// Implemented by imaging.Generator.
type ImageGenerator interface {
	Generate(ctx context.Context, sourcePath, baseName string) ([]asset.ImageFile, error)
	// CanonicalDerivative is the one well-known output path consulted by the
	// page-generation recovery gate.
	CanonicalDerivative(baseName string) string
}

// VideoTranscoder produces the full video rendition set for a base name.
// Implemented by video.Transcoder.
type VideoTranscoder interface {
	Transcode(ctx context.Context, sourcePath, baseName string) ([]asset.VideoFile, error)
}

// PageRenderer writes the HTML embed page. Implemented by page.Renderer.
type PageRenderer interface {
	Render(ctx context.Context, in page.Input) (string, error)
}

// Notifier receives run-level events. Implementations must tolerate being
// called with a canceled context; notification failures never affect the run
// outcome.
type Notifier interface {
	AssetComplete(ctx context.Context, identityToken, baseName string)
	AssetFailed(ctx context.Context, identityToken string, err error)
}

type nopNotifier struct{}

func (nopNotifier) AssetComplete(context.Context, string, string) {}

func (nopNotifier) AssetFailed(context.Context, string, error) {}
