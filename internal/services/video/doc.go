// Package video generates web-ready MP4 and WebM renditions for an asset by
// shelling out to ffmpeg.
package video
