package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and index file configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	IndexPath string `toml:"index_path"`
	LogDir    string `toml:"log_dir"`
}

// Store contains configuration for the asset record store backend.
type Store struct {
	Backend    string `toml:"backend"` // "json" or "sqlite"
	SQLitePath string `toml:"sqlite_path"`
}

// Describer contains configuration for the Gemini naming/description service.
type Describer struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Imaging contains configuration for image derivative generation.
type Imaging struct {
	ConvertCommand  string `toml:"convert_command"`
	ExiftoolCommand string `toml:"exiftool_command"`
	Widths          []int  `toml:"widths"`
	JPEGQuality     int    `toml:"jpeg_quality"`
	WebPQuality     int    `toml:"webp_quality"`
}

// Video contains configuration for video derivative generation.
type Video struct {
	FFmpegCommand   string `toml:"ffmpeg_command"`
	ExiftoolCommand string `toml:"exiftool_command"`
	Heights         []int  `toml:"heights"`
	H264Preset      string `toml:"h264_preset"`
	H264CRF         int    `toml:"h264_crf"`
	VP9CRF          int    `toml:"vp9_crf"`
	AudioBitrate    string `toml:"audio_bitrate"`
}

// Page contains configuration for HTML embed page generation.
type Page struct {
	RawURLBase string `toml:"raw_url_base"`
	// ContentDir is the repo-relative directory the derivatives are committed
	// under, appended to raw content URLs after the git ref.
	ContentDir   string `toml:"content_dir"`
	TemplatePath string `toml:"template_path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Completion     bool   `toml:"completion"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Preflight contains thresholds for environment checks.
type Preflight struct {
	MinFreeDiskMiB int64 `toml:"min_free_disk_mib"`
}

// Config encapsulates all configuration values for mediaforge.
//
// Configuration sections by subsystem:
//   - Paths: output root, index location, log directory
//   - Store: asset record store backend selection
//   - Describer: Gemini API connection for naming and descriptions
//   - Imaging: ImageMagick/exiftool derivative settings
//   - Video: ffmpeg derivative settings
//   - Page: embed page URL construction
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Preflight: environment check thresholds
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Describer     Describer     `toml:"describer"`
	Imaging       Imaging       `toml:"imaging"`
	Video         Video         `toml:"video"`
	Page          Page          `toml:"page"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Preflight     Preflight     `toml:"preflight"`
}

// envOverrides captures environment variables layered over the file config.
// Credentials are expected to arrive this way in CI.
type envOverrides struct {
	GeminiAPIKey string `env:"MEDIAFORGE_GEMINI_API_KEY"`
	NtfyTopic    string `env:"MEDIAFORGE_NTFY_TOPIC"`
	LogLevel     string `env:"MEDIAFORGE_LOG_LEVEL"`
	LogFormat    string `env:"MEDIAFORGE_LOG_FORMAT"`
	StoreBackend string `env:"MEDIAFORGE_STORE_BACKEND"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaforge/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to the target path.
func CreateSample(target string) error {
	return os.WriteFile(target, []byte(sampleConfig), 0o644)
}

// ExpandPath expands a leading ~ to the user home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config
// has environment overrides applied and all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(context.Background()); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides(ctx context.Context) error {
	var overrides envOverrides
	if err := envconfig.Process(ctx, &overrides); err != nil {
		return fmt.Errorf("read env overrides: %w", err)
	}
	if overrides.GeminiAPIKey != "" {
		c.Describer.APIKey = overrides.GeminiAPIKey
	}
	if overrides.NtfyTopic != "" {
		c.Notifications.NtfyTopic = overrides.NtfyTopic
	}
	if overrides.LogLevel != "" {
		c.Logging.Level = overrides.LogLevel
	}
	if overrides.LogFormat != "" {
		c.Logging.Format = overrides.LogFormat
	}
	if overrides.StoreBackend != "" {
		c.Store.Backend = overrides.StoreBackend
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// DescriptionsDir returns the directory holding long-form description artifacts.
func (c *Config) DescriptionsDir() string {
	return filepath.Join(c.Paths.OutputDir, "descriptions")
}

// ImagesDir returns the directory holding image derivatives.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.Paths.OutputDir, "images")
}

// VideosDir returns the directory holding video derivatives.
func (c *Config) VideosDir() string {
	return filepath.Join(c.Paths.OutputDir, "videos")
}

// HTMLDir returns the directory holding generated embed pages.
func (c *Config) HTMLDir() string {
	return filepath.Join(c.Paths.OutputDir, "html")
}

// EnsureDirectories creates every directory the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputDir,
		c.DescriptionsDir(),
		c.ImagesDir(),
		c.VideosDir(),
		c.HTMLDir(),
		c.Paths.LogDir,
		filepath.Dir(c.Paths.IndexPath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
