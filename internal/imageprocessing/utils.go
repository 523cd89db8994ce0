// Package imageprocessing computes perceptual hashes of images.
// It covers the hash algorithms, resize filters, geometric variants used for
// mirror and rotation tolerance, and a few helpers shared by the outer
// surfaces.
package imageprocessing

import (
	"bytes"
	"encoding/base64"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// SupportedImageFormats is a map of supported image file extensions
var SupportedImageFormats = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile checks if the file extension is a supported image format
func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedImageFormats[ext]
}

// GenerateThumbnail creates a smaller version of the image
// and returns it as a base64-encoded string
func GenerateThumbnail(img image.Image, size int) string {
	thumbnail := imaging.Resize(img, size, 0, imaging.Lanczos)

	var buf bytes.Buffer
	err := imaging.Encode(&buf, thumbnail, imaging.JPEG)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// SimilarityLevel names a band of thresholds for one hash size.
type SimilarityLevel string

const (
	LevelOriginal  SimilarityLevel = "Original"
	LevelVeryHigh  SimilarityLevel = "Very High"
	LevelHigh      SimilarityLevel = "High"
	LevelMedium    SimilarityLevel = "Medium"
	LevelSmall     SimilarityLevel = "Small"
	LevelVerySmall SimilarityLevel = "Very Small"
	LevelMinimal   SimilarityLevel = "Minimal"
)

var levelOrder = []SimilarityLevel{LevelVeryHigh, LevelHigh, LevelMedium, LevelSmall, LevelVerySmall, LevelMinimal}

// levelThresholds holds the upper distance bound of each level, per hash
// size, in levelOrder.
var levelThresholds = map[int][]uint32{
	8:  {1, 2, 5, 7, 14, 20},
	16: {2, 5, 15, 30, 40, 40},
	32: {4, 10, 20, 40, 40, 40},
	64: {6, 20, 40, 40, 40, 40},
}

// DescribeDistance labels a distance for display. It returns LevelOriginal
// for 0 and an empty level past the loosest band.
func DescribeDistance(distance uint32, hashSize int) SimilarityLevel {
	if distance == 0 {
		return LevelOriginal
	}
	bounds, ok := levelThresholds[hashSize]
	if !ok {
		return ""
	}
	for i, bound := range bounds {
		if distance <= bound {
			return levelOrder[i]
		}
	}
	return ""
}

// ThresholdForLevel returns the largest distance still inside level for the
// given hash size.
func ThresholdForLevel(level SimilarityLevel, hashSize int) (uint32, bool) {
	if level == LevelOriginal {
		return 0, true
	}
	bounds, ok := levelThresholds[hashSize]
	if !ok {
		return 0, false
	}
	for i, l := range levelOrder {
		if strings.EqualFold(string(l), string(level)) {
			return bounds[i], true
		}
	}
	return 0, false
}
