package preprocessing

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMockJPEGImage creates a simple colored JPEG image for testing
func createMockJPEGImage(width, height int, baseColor color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			factor := float64(x+y) / float64(width+height)
			r := uint8(float64(baseColor.R) * factor)
			g := uint8(float64(baseColor.G) * factor)
			b := uint8(float64(baseColor.B) * factor)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	var buf bytes.Buffer
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes(), err
}

func TestNewImageProcessor(t *testing.T) {
	assert.Equal(t, 64, NewImageProcessor(64).TargetSize())
	assert.Equal(t, FrameSize, NewImageProcessor(0).TargetSize())
}

func TestDecodeAndResize(t *testing.T) {
	processor := NewImageProcessor(FrameSize)

	t.Run("ValidJPEGImage", func(t *testing.T) {
		data, err := createMockJPEGImage(320, 240, color.RGBA{255, 128, 64, 255})
		require.NoError(t, err)

		img, err := processor.DecodeAndResize(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, FrameSize, FrameSize), img.Bounds())
	})

	t.Run("InvalidData", func(t *testing.T) {
		_, err := processor.DecodeAndResize(bytes.NewReader([]byte("not a jpeg")))
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	processor := NewImageProcessor(32)

	data, err := createMockJPEGImage(64, 48, color.RGBA{10, 200, 30, 255})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/frames/a.jpg", data, 0644))

	t.Run("Existing", func(t *testing.T) {
		img, err := processor.LoadFile(fs, "/frames/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
		assert.Equal(t, 32, img.Bounds().Dy())
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := processor.LoadFile(fs, "/frames/missing.jpg")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Corrupt", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/frames/bad.jpg", []byte("garbage"), 0644))
		_, err := processor.LoadFile(fs, "/frames/bad.jpg")
		assert.Error(t, err)
	})
}

func TestToTensor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 1, color.RGBA{0, 0, 255, 255})

	out := ToTensor(img)
	require.Len(t, out.Data, 3*2*2)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Equal(t, 3, out.Channels)

	// CHW: R plane, then G plane, then B plane
	assert.InDelta(t, 1.0, out.Data[0], 1e-6)
	assert.InDelta(t, 0.0, out.Data[4], 1e-6)
	assert.InDelta(t, 1.0, out.Data[8+3], 1e-6)
	for _, v := range out.Data {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestNormalize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})
	out := ToTensor(img)

	require.NoError(t, out.Normalize([3]float32{0.5, 0.5, 0.5}, [3]float32{0.5, 0.5, 0.5}))
	for _, v := range out.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}

	assert.Error(t, out.Normalize([3]float32{}, [3]float32{1, 0, 1}))

	broken := &ProcessedImage{Data: []float32{1, 2}, Width: 1, Height: 1, Channels: 3}
	assert.Error(t, broken.Normalize(ImageNetMean, ImageNetStd))
}

func TestHorizontalFlip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	flipped := HorizontalFlip(img)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, flipped.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{}, flipped.RGBAAt(0, 0))
}

func TestPipeline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	t.Run("AlwaysFlip", func(t *testing.T) {
		pl := NewPipeline(WithHorizontalFlip(1.0), WithPipelineRand(rand.New(rand.NewSource(1))))
		out, err := pl.Apply(img)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, out.Data[0], 1e-6)
		assert.InDelta(t, 1.0, out.Data[2], 1e-6)
	})

	t.Run("NoFlip", func(t *testing.T) {
		out, err := NewPipeline().Apply(img)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, out.Data[0], 1e-6)
	})

	t.Run("Normalized", func(t *testing.T) {
		pl := NewPipeline(WithNormalize(ImageNetMean, ImageNetStd))
		out, err := pl.Apply(img)
		require.NoError(t, err)
		assert.InDelta(t, (1.0-0.485)/0.229, out.Data[0], 1e-4)
	})

	t.Run("Func", func(t *testing.T) {
		called := false
		tf := TransformFunc(func(img image.Image) (*ProcessedImage, error) {
			called = true
			return ToTensor(img), nil
		})
		_, err := tf.Apply(img)
		require.NoError(t, err)
		assert.True(t, called)
	})
}
