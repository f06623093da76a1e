package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediaforge/internal/asset"
	"mediaforge/internal/config"
	"mediaforge/internal/logging"
	"mediaforge/internal/services"
)

const subdir = "images"

// runner abstracts external command execution so tests can fake the
// ImageMagick and exiftool binaries.
type runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Generator produces resized JPEG and WebP derivatives for each configured
// width class by invoking ImageMagick, then copies source metadata with
// exiftool on a best-effort basis.
type Generator struct {
	cfg    config.Imaging
	root   string
	runner runner
	logger *slog.Logger
}

// Option customizes the generator.
type Option func(*Generator)

// WithRunner overrides command execution (tests only).
func WithRunner(r runner) Option {
	return func(g *Generator) {
		if r != nil {
			g.runner = r
		}
	}
}

// New constructs an image derivative generator writing under root/images.
func New(cfg config.Imaging, root string, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Generator{
		cfg:    cfg,
		root:   root,
		runner: execRunner{},
		logger: logging.NewComponentLogger(logger, "imaging"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Widths returns the configured width classes.
func (g *Generator) Widths() []int {
	cp := make([]int, len(g.cfg.Widths))
	copy(cp, g.cfg.Widths)
	return cp
}

// CanonicalDerivative returns the absolute path of the single well-known
// output checked by the page-generation recovery fallback: the JPEG at the
// smallest configured width.
func (g *Generator) CanonicalDerivative(baseName string) string {
	return filepath.Join(g.root, subdir, fileName(baseName, smallestWidth(g.cfg.Widths), "jpg"))
}

// Generate produces every configured derivative for the source image. The
// stage is all-or-nothing: the first failing width aborts the remaining
// classes and no manifest is returned, so a retry regenerates the full set.
// Files already written by the failed attempt stay on disk and are simply
// overwritten next time.
func (g *Generator) Generate(ctx context.Context, sourcePath, baseName string) ([]asset.ImageFile, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, services.Wrap(services.ErrValidation, "image_derivatives", "generate", "base name required", nil)
	}
	if err := os.MkdirAll(filepath.Join(g.root, subdir), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "image_derivatives", "ensure output dir", "", err)
	}

	manifest := make([]asset.ImageFile, 0, len(g.cfg.Widths)*2)
	for _, width := range g.cfg.Widths {
		for _, enc := range []struct {
			format  string
			quality int
		}{
			{"jpg", g.cfg.JPEGQuality},
			{"webp", g.cfg.WebPQuality},
		} {
			relative := filepath.Join(subdir, fileName(baseName, width, enc.format))
			absolute := filepath.Join(g.root, subdir, fileName(baseName, width, enc.format))

			err := g.runner.Run(ctx, g.cfg.ConvertCommand,
				sourcePath,
				"-resize", fmt.Sprintf("%dx>", width),
				"-quality", fmt.Sprintf("%d", enc.quality),
				absolute,
			)
			if err != nil {
				return nil, services.Wrap(services.ErrExternalTool, "image_derivatives", "convert",
					fmt.Sprintf("width %d %s", width, enc.format), err)
			}

			g.copyMetadata(ctx, sourcePath, absolute)
			manifest = append(manifest, asset.ImageFile{Format: enc.format, Width: width, Path: relative})
		}
		g.logger.Debug("image width class complete",
			logging.Int("width", width),
			logging.String("base_name", baseName))
	}
	return manifest, nil
}

// copyMetadata transfers source tags into the derivative. exiftool warnings
// are non-fatal; the derivative is already usable without them.
func (g *Generator) copyMetadata(ctx context.Context, sourcePath, target string) {
	err := g.runner.Run(ctx, g.cfg.ExiftoolCommand,
		"-tagsFromFile", sourcePath,
		"-all:all",
		"-overwrite_original",
		target,
	)
	if err != nil {
		g.logger.Debug("metadata copy failed", logging.String("target", target), logging.Error(err))
	}
	// exiftool leaves a backup beside the file when -overwrite_original is
	// ignored by older versions.
	_ = os.Remove(target + "_original")
}

func fileName(baseName string, width int, format string) string {
	return fmt.Sprintf("%s-%dw.%s", baseName, width, format)
}

func smallestWidth(widths []int) int {
	if len(widths) == 0 {
		return 0
	}
	min := widths[0]
	for _, w := range widths[1:] {
		if w < min {
			min = w
		}
	}
	return min
}
