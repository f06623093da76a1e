package video

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

const subdir = "videos"

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
			// ffmpeg writes its whole progress log to stderr; keep the tail.
			if len(detail) > 512 {
				detail = detail[len(detail)-512:]
			}
			return fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Transcoder produces MP4 (H.264/AAC) and WebM (VP9/Opus) renditions for each
// configured height class by invoking ffmpeg, then copies source metadata
// with exiftool on a best-effort basis.
type Transcoder struct {
	cfg    config.Video
	root   string
	runner runner
	logger *slog.Logger
}

type Option func(*Transcoder)

// WithRunner overrides command execution (tests only).
func WithRunner(r runner) Option {
	return func(t *Transcoder) {
		if r != nil {
			t.runner = r
		}
	}
}

// New constructs a video transcoder writing under root/videos.
func New(cfg config.Video, root string, logger *slog.Logger, opts ...Option) *Transcoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	t := &Transcoder{
		cfg:    cfg,
		root:   root,
		runner: execRunner{},
		logger: logging.NewComponentLogger(logger, "video"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Heights returns the configured height classes.
func (t *Transcoder) Heights() []int {
	cp := make([]int, len(t.cfg.Heights))
	copy(cp, t.cfg.Heights)
	return cp
}

// Transcode produces every configured rendition for the source video. Like
// image derivative generation the stage is all-or-nothing: the first failing
// rendition aborts the rest and no manifest is returned.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath, baseName string) ([]asset.VideoFile, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, services.Wrap(services.ErrValidation, "video_derivatives", "transcode", "base name required", nil)
	}
	if err := os.MkdirAll(filepath.Join(t.root, subdir), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "video_derivatives", "ensure output dir", "", err)
	}

	manifest := make([]asset.VideoFile, 0, len(t.cfg.Heights)*2)
	for _, height := range t.cfg.Heights {
		for _, enc := range []struct {
			format string
			args   func(height int, output string) []string
		}{
			{"mp4", t.mp4Args},
			{"webm", t.webmArgs},
		} {
			relative := filepath.Join(subdir, fileName(baseName, height, enc.format))
			absolute := filepath.Join(t.root, subdir, fileName(baseName, height, enc.format))

			args := append([]string{"-i", sourcePath}, enc.args(height, absolute)...)
			if err := t.runner.Run(ctx, t.cfg.FFmpegCommand, args...); err != nil {
				return nil, services.Wrap(services.ErrExternalTool, "video_derivatives", "ffmpeg",
					fmt.Sprintf("height %d %s", height, enc.format), err)
			}

			t.copyMetadata(ctx, sourcePath, absolute)
			manifest = append(manifest, asset.VideoFile{Format: enc.format, Height: height, Path: relative})
		}
		t.logger.Debug("video height class complete",
			logging.Int("height", height),
			logging.String("base_name", baseName))
	}
	return manifest, nil
}

// mp4Args builds the H.264/AAC rendition arguments. The scale filter never
// upscales: sources shorter than the class keep their native height.
func (t *Transcoder) mp4Args(height int, output string) []string {
	return []string{
		"-vf", scaleFilter(height),
		"-c:v", "libx264",
		"-preset", t.cfg.H264Preset,
		"-crf", fmt.Sprintf("%d", t.cfg.H264CRF),
		"-c:a", "aac",
		"-b:a", t.cfg.AudioBitrate,
		"-movflags", "+faststart",
		"-y", output,
	}
}

func (t *Transcoder) webmArgs(height int, output string) []string {
	return []string{
		"-vf", scaleFilter(height),
		"-c:v", "libvpx-vp9",
		"-crf", fmt.Sprintf("%d", t.cfg.VP9CRF),
		"-b:v", "0",
		"-c:a", "libopus",
		"-b:a", t.cfg.AudioBitrate,
		"-y", output,
	}
}

// copyMetadata transfers source tags into the rendition. exiftool warnings
// are non-fatal; the rendition is already playable without them.
func (t *Transcoder) copyMetadata(ctx context.Context, sourcePath, target string) {
	err := t.runner.Run(ctx, t.cfg.ExiftoolCommand,
		"-tagsFromFile", sourcePath,
		"-all:all",
		"-overwrite_original",
		target,
	)
	if err != nil {
		t.logger.Debug("metadata copy failed", logging.String("target", target), logging.Error(err))
	}
	// exiftool leaves a backup beside the file when -overwrite_original is
	// ignored by older versions.
	_ = os.Remove(target + "_original")
}

func scaleFilter(height int) string {
	return fmt.Sprintf("scale=-2:min(ih\\,%d)", height)
}

func fileName(baseName string, height int, format string) string {
	return fmt.Sprintf("%s-%dp.%s", baseName, height, format)
}
