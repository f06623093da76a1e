package config

const (
	defaultOutputDir          = "processed_media"
	defaultIndexPath          = "processed_media/index.json"
	defaultLogDir             = "~/.local/share/mediaforge/logs"
	defaultStoreBackend       = "json"
	defaultDescriberBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultDescriberModel     = "gemini-pro-vision"
	defaultDescriberTimeout   = 60
	defaultDescriberRetries   = 3
	defaultConvertCommand     = "convert"
	defaultExiftoolCommand    = "exiftool"
	defaultFFmpegCommand      = "ffmpeg"
	defaultJPEGQuality        = 85
	defaultWebPQuality        = 80
	defaultH264Preset         = "medium"
	defaultH264CRF            = 23
	defaultVP9CRF             = 30
	defaultAudioBitrate       = "128k"
	defaultRawURLBase         = "https://raw.githubusercontent.com"
	defaultContentDir         = "processed_media"
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMinFreeDiskMiB     = 512
)

func defaultWidths() []int  { return []int{1920, 1280, 640} }
func defaultHeights() []int { return []int{1080, 720} }

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			IndexPath: defaultIndexPath,
			LogDir:    defaultLogDir,
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Describer: Describer{
			BaseURL:        defaultDescriberBaseURL,
			Model:          defaultDescriberModel,
			TimeoutSeconds: defaultDescriberTimeout,
			RetryAttempts:  defaultDescriberRetries,
		},
		Imaging: Imaging{
			ConvertCommand:  defaultConvertCommand,
			ExiftoolCommand: defaultExiftoolCommand,
			Widths:          defaultWidths(),
			JPEGQuality:     defaultJPEGQuality,
			WebPQuality:     defaultWebPQuality,
		},
		Video: Video{
			FFmpegCommand:   defaultFFmpegCommand,
			ExiftoolCommand: defaultExiftoolCommand,
			Heights:         defaultHeights(),
			H264Preset:      defaultH264Preset,
			H264CRF:         defaultH264CRF,
			VP9CRF:          defaultVP9CRF,
			AudioBitrate:    defaultAudioBitrate,
		},
		Page: Page{
			RawURLBase: defaultRawURLBase,
			ContentDir: defaultContentDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Errors:         true,
			Completion:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Preflight: Preflight{
			MinFreeDiskMiB: defaultMinFreeDiskMiB,
		},
	}
}
