package preprocessing

import (
	"image"
	"image/jpeg"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
)

// FrameSize is the square footprint every frame is resized to before transforms run
const FrameSize = 224

// ProcessedImage represents a preprocessed image ready for neural network input
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// ImageProcessor decodes JPEG frames and resizes them to a fixed square size
type ImageProcessor struct {
	targetSize int
	scaler     draw.Scaler
}

// NewImageProcessor creates a new image processor with the specified target size
func NewImageProcessor(targetSize int) *ImageProcessor {
	if targetSize <= 0 {
		targetSize = FrameSize
	}
	return &ImageProcessor{
		targetSize: targetSize,
		scaler:     draw.BiLinear,
	}
}

// TargetSize returns the edge length of resized images
func (p *ImageProcessor) TargetSize() int {
	return p.targetSize
}

// DecodeAndResize decodes a JPEG stream and resizes it to targetSize x targetSize.
// The aspect ratio is not preserved.
func (p *ImageProcessor) DecodeAndResize(reader io.Reader) (*image.RGBA, error) {
	img, err := jpeg.Decode(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode JPEG")
	}
	return p.Resize(img), nil
}

// Resize scales img into a new RGBA image of targetSize x targetSize
func (p *ImageProcessor) Resize(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.targetSize, p.targetSize))
	p.scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// LoadFile opens path on fs, decodes and resizes it. The file is closed before
// returning on every path, so callers never hold a handle past this call.
func (p *ImageProcessor) LoadFile(fs afero.Fs, path string) (*image.RGBA, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open frame %s", path)
	}
	defer file.Close()

	img, err := p.DecodeAndResize(file)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %s", path)
	}
	return img, nil
}

// ToTensor converts an image to float32 RGB data in CHW format normalized to [0, 1]
func ToTensor(img image.Image) *ProcessedImage {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := y*width + x
			data[0*plane+idx] = float32(r) / 65535.0
			data[1*plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}

	return &ProcessedImage{
		Data:     data,
		Width:    width,
		Height:   height,
		Channels: 3,
	}
}

// Normalize subtracts the per-channel mean and divides by the per-channel std in place
func (pi *ProcessedImage) Normalize(mean, std [3]float32) error {
	plane := pi.Width * pi.Height
	if len(pi.Data) != pi.Channels*plane || pi.Channels != 3 {
		return errors.Errorf("cannot normalize %d values as %dx%dx%d", len(pi.Data), pi.Channels, pi.Height, pi.Width)
	}
	for c := 0; c < 3; c++ {
		if std[c] == 0 {
			return errors.Errorf("std for channel %d is zero", c)
		}
		channel := pi.Data[c*plane : (c+1)*plane]
		for i := range channel {
			channel[i] = (channel[i] - mean[c]) / std[c]
		}
	}
	return nil
}

// HorizontalFlip returns a mirrored copy of img
func HorizontalFlip(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			out.Set(bounds.Dx()-1-x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return out
}
