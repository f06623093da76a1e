package asset

import (
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
	".flv":  {},
}

// ClassifyType derives the media type from the source file extension.
func ClassifyType(path string) MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return TypeImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return TypeVideo
	}
	return TypeUnknown
}
