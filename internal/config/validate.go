package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateImaging(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "json", "sqlite":
		return nil
	default:
		return fmt.Errorf("store.backend must be \"json\" or \"sqlite\", got %q", c.Store.Backend)
	}
}

func (c *Config) validateImaging() error {
	for _, width := range c.Imaging.Widths {
		if width <= 0 {
			return fmt.Errorf("imaging.widths must be positive, got %d", width)
		}
	}
	if c.Imaging.JPEGQuality > 100 {
		return errors.New("imaging.jpeg_quality must be between 1 and 100")
	}
	if c.Imaging.WebPQuality > 100 {
		return errors.New("imaging.webp_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateVideo() error {
	for _, height := range c.Video.Heights {
		if height <= 0 {
			return fmt.Errorf("video.heights must be positive, got %d", height)
		}
	}
	if c.Video.H264CRF > 51 {
		return errors.New("video.h264_crf must be between 0 and 51")
	}
	if c.Video.VP9CRF > 63 {
		return errors.New("video.vp9_crf must be between 0 and 63")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
}
