package dataset

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/tsawler/go-ucf/vision/preprocessing"
)

// TestingFrameDataset serves fixed frames listed as "<video>-<frame>[@]<label>"
// entries. Get is deterministic.
type TestingFrameDataset struct {
	fs        afero.Fs
	root      string
	entries   []string
	processor *preprocessing.ImageProcessor
	transform preprocessing.Transform
}

// TestingOption configures a TestingFrameDataset
type TestingOption func(*TestingFrameDataset)

// WithTestingImageSize resizes frames to size x size instead of FrameSize
func WithTestingImageSize(size int) TestingOption {
	return func(d *TestingFrameDataset) {
		d.processor = preprocessing.NewImageProcessor(size)
	}
}

// NewTestingFrameDataset creates a testing dataset. transform may be nil, in which
// case samples carry the resized image instead of a tensor.
func NewTestingFrameDataset(fs afero.Fs, root string, entries []string, transform preprocessing.Transform, opts ...TestingOption) *TestingFrameDataset {
	d := &TestingFrameDataset{
		fs:        fs,
		root:      root,
		entries:   entries,
		processor: preprocessing.NewImageProcessor(preprocessing.FrameSize),
		transform: transform,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Len returns the number of entries
func (d *TestingFrameDataset) Len() int {
	return len(d.entries)
}

// Deterministic reports that repeated Get calls return the same sample
func (d *TestingFrameDataset) Deterministic() bool {
	return true
}

// Get loads the frame named by the entry at index
func (d *TestingFrameDataset) Get(index int) (*Sample, error) {
	if index < 0 || index >= len(d.entries) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, len(d.entries))
	}

	video, frame, label, err := parseTestEntry(d.entries[index])
	if err != nil {
		return nil, err
	}
	video = NormalizeClassKey(video)
	path := FramePath(d.root, video, frame)

	img, err := d.processor.LoadFile(d.fs, path)
	if err != nil {
		return nil, err
	}

	sample := &Sample{
		Video: video,
		Frame: frame,
		Path:  path,
		Label: label - 1,
	}
	if d.transform == nil {
		sample.Image = img
		return sample, nil
	}

	sample.Tensor, err = d.transform.Apply(img)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform %s", path)
	}
	return sample, nil
}
