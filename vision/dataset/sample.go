package dataset

import (
	"image"

	"github.com/tsawler/go-ucf/vision/preprocessing"
)

// Sample is one decoded frame together with its 0-based class label
type Sample struct {
	Video string
	Frame int
	Path  string

	// Image holds the resized frame when no transform was applied
	Image *image.RGBA
	// Tensor holds the transformed frame
	Tensor *preprocessing.ProcessedImage

	Label int
}
