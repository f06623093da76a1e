package testsupport

import (
	"path/filepath"
	"testing"

	"mediaforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "processed_media")
	cfg.Paths.IndexPath = filepath.Join(base, "processed_media", "index.json")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Store.SQLitePath = filepath.Join(base, "processed_media", "index.db")
	cfg.Describer.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithStoreBackend selects the record store backend on the test config.
func WithStoreBackend(backend string) ConfigOption {
	return func(c *config.Config) {
		c.Store.Backend = backend
	}
}

// WithWidths overrides the image width classes on the test config.
func WithWidths(widths ...int) ConfigOption {
	return func(c *config.Config) {
		c.Imaging.Widths = widths
	}
}

// WithHeights overrides the video height classes on the test config.
func WithHeights(heights ...int) ConfigOption {
	return func(c *config.Config) {
		c.Video.Heights = heights
	}
}
