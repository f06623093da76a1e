package notifications

import (
	"context"
	"log/slog"

	"mediaforge/internal/logging"
)

// PipelineNotifier adapts Service to the pipeline's fire-and-forget event
// surface. Delivery failures are logged and dropped.
type PipelineNotifier struct {
	service Service
	logger  *slog.Logger
}

// NewPipelineNotifier wraps a Service for use by the pipeline.
func NewPipelineNotifier(service Service, logger *slog.Logger) *PipelineNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PipelineNotifier{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
	}
}

func (p *PipelineNotifier) AssetComplete(ctx context.Context, identityToken, baseName string) {
	if err := p.service.NotifyAssetComplete(ctx, identityToken, baseName); err != nil {
		p.logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (p *PipelineNotifier) AssetFailed(ctx context.Context, identityToken string, cause error) {
	if err := p.service.NotifyAssetFailed(ctx, identityToken, cause); err != nil {
		p.logger.Warn("error notification failed", logging.Error(err))
	}
}
