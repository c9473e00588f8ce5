package preprocessing

import (
	"image"
	"math/rand"
	"sync"
	"time"
)

// ImageNet channel statistics, the usual normalization for pretrained backbones
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Transform turns a resized frame into network input
type Transform interface {
	Apply(img image.Image) (*ProcessedImage, error)
}

// TransformFunc adapts a plain function to the Transform interface
type TransformFunc func(img image.Image) (*ProcessedImage, error)

// Apply calls f(img)
func (f TransformFunc) Apply(img image.Image) (*ProcessedImage, error) {
	return f(img)
}

// Pipeline is a Transform made of an optional random horizontal flip, the CHW
// tensor conversion and an optional per-channel normalization
type Pipeline struct {
	flipProb  float64
	normalize bool
	mean      [3]float32
	std       [3]float32

	mu  sync.Mutex
	rng *rand.Rand
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithHorizontalFlip mirrors frames with probability p
func WithHorizontalFlip(p float64) PipelineOption {
	return func(pl *Pipeline) {
		pl.flipProb = p
	}
}

// WithNormalize normalizes each channel with the given statistics
func WithNormalize(mean, std [3]float32) PipelineOption {
	return func(pl *Pipeline) {
		pl.normalize = true
		pl.mean = mean
		pl.std = std
	}
}

// WithPipelineRand sets the random source used for flips
func WithPipelineRand(rng *rand.Rand) PipelineOption {
	return func(pl *Pipeline) {
		pl.rng = rng
	}
}

// NewPipeline creates a transform pipeline
func NewPipeline(opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{}
	for _, opt := range opts {
		opt(pl)
	}
	if pl.rng == nil {
		pl.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return pl
}

// Apply runs the pipeline on img. Safe for concurrent use.
func (pl *Pipeline) Apply(img image.Image) (*ProcessedImage, error) {
	if pl.flipProb > 0 && pl.draw() < pl.flipProb {
		img = HorizontalFlip(img)
	}

	out := ToTensor(img)
	if pl.normalize {
		if err := out.Normalize(pl.mean, pl.std); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (pl *Pipeline) draw() float64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.rng.Float64()
}
