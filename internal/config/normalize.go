package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeDescriber()
	c.normalizeImaging()
	c.normalizeVideo()
	c.normalizePage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IndexPath) == "" {
		c.Paths.IndexPath = filepath.Join(c.Paths.OutputDir, "index.json")
	}
	if c.Paths.IndexPath, err = expandPath(c.Paths.IndexPath); err != nil {
		return fmt.Errorf("paths.index_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = strings.TrimSuffix(c.Paths.IndexPath, filepath.Ext(c.Paths.IndexPath)) + ".db"
	}
}

func (c *Config) normalizeDescriber() {
	c.Describer.APIKey = strings.TrimSpace(c.Describer.APIKey)
	c.Describer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Describer.BaseURL), "/")
	if c.Describer.BaseURL == "" {
		c.Describer.BaseURL = defaultDescriberBaseURL
	}
	c.Describer.Model = strings.TrimSpace(c.Describer.Model)
	if c.Describer.Model == "" {
		c.Describer.Model = defaultDescriberModel
	}
	if c.Describer.TimeoutSeconds <= 0 {
		c.Describer.TimeoutSeconds = defaultDescriberTimeout
	}
	if c.Describer.RetryAttempts <= 0 {
		c.Describer.RetryAttempts = defaultDescriberRetries
	}
}

func (c *Config) normalizeImaging() {
	if strings.TrimSpace(c.Imaging.ConvertCommand) == "" {
		c.Imaging.ConvertCommand = defaultConvertCommand
	}
	if strings.TrimSpace(c.Imaging.ExiftoolCommand) == "" {
		c.Imaging.ExiftoolCommand = defaultExiftoolCommand
	}
	if len(c.Imaging.Widths) == 0 {
		c.Imaging.Widths = defaultWidths()
	}
	if c.Imaging.JPEGQuality <= 0 {
		c.Imaging.JPEGQuality = defaultJPEGQuality
	}
	if c.Imaging.WebPQuality <= 0 {
		c.Imaging.WebPQuality = defaultWebPQuality
	}
}

func (c *Config) normalizeVideo() {
	if strings.TrimSpace(c.Video.FFmpegCommand) == "" {
		c.Video.FFmpegCommand = defaultFFmpegCommand
	}
	if strings.TrimSpace(c.Video.ExiftoolCommand) == "" {
		c.Video.ExiftoolCommand = c.Imaging.ExiftoolCommand
	}
	if len(c.Video.Heights) == 0 {
		c.Video.Heights = defaultHeights()
	}
	if strings.TrimSpace(c.Video.H264Preset) == "" {
		c.Video.H264Preset = defaultH264Preset
	}
	if c.Video.H264CRF <= 0 {
		c.Video.H264CRF = defaultH264CRF
	}
	if c.Video.VP9CRF <= 0 {
		c.Video.VP9CRF = defaultVP9CRF
	}
	if strings.TrimSpace(c.Video.AudioBitrate) == "" {
		c.Video.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizePage() {
	c.Page.RawURLBase = strings.TrimRight(strings.TrimSpace(c.Page.RawURLBase), "/")
	if c.Page.RawURLBase == "" {
		c.Page.RawURLBase = defaultRawURLBase
	}
	c.Page.ContentDir = strings.Trim(strings.TrimSpace(c.Page.ContentDir), "/")
	if expanded, err := expandPath(strings.TrimSpace(c.Page.TemplatePath)); err == nil {
		c.Page.TemplatePath = expanded
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	if c.Preflight.MinFreeDiskMiB <= 0 {
		c.Preflight.MinFreeDiskMiB = defaultMinFreeDiskMiB
	}
}
