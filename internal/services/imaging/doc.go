// Package imaging generates the resized JPEG and WebP derivative set for an
// asset by shelling out to ImageMagick and exiftool.
package imaging
