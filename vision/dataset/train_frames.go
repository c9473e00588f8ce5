package dataset

import (
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/tsawler/go-ucf/vision/preprocessing"
)

type trainingEntry struct {
	video  string
	frames int
	label  int
}

// key returns the "<video>[@]<frames>" sample key
func (e trainingEntry) key() string {
	return e.video + entrySeparator + strconv.Itoa(e.frames)
}

// TrainingFrameDataset serves one randomly chosen frame per labelled video. Every
// Get draws a new frame index, so repeated calls may return different images for
// the same video and label.
type TrainingFrameDataset struct {
	fs        afero.Fs
	root      string
	entries   []trainingEntry
	processor *preprocessing.ImageProcessor
	transform preprocessing.Transform

	mu  sync.Mutex
	rng *rand.Rand
}

// TrainingOption configures a TrainingFrameDataset
type TrainingOption func(*TrainingFrameDataset)

// WithRand sets the random source used to pick frames
func WithRand(rng *rand.Rand) TrainingOption {
	return func(d *TrainingFrameDataset) {
		d.rng = rng
	}
}

// WithTransform sets the transform applied to each resized frame. Without one,
// frames are converted with preprocessing.ToTensor.
func WithTransform(t preprocessing.Transform) TrainingOption {
	return func(d *TrainingFrameDataset) {
		d.transform = t
	}
}

// WithImageSize overrides the square resize target
func WithImageSize(size int) TrainingOption {
	return func(d *TrainingFrameDataset) {
		d.processor = preprocessing.NewImageProcessor(size)
	}
}

// NewTrainingFrameDataset merges labels and frame counts into sample keys. Every
// labelled video must have a frame count, and both spellings of a video must
// agree on its label.
func NewTrainingFrameDataset(fs afero.Fs, root string, labels LabelMap, frames FrameCountMap, opts ...TrainingOption) (*TrainingFrameDataset, error) {
	canonical, err := canonicalLabels(labels)
	if err != nil {
		return nil, err
	}

	entries := make([]trainingEntry, 0, len(canonical))
	for video, label := range canonical {
		count, ok := frames[video]
		if !ok {
			return nil, errors.Wrapf(ErrMissingFrameCount, "video %s", video)
		}
		entries = append(entries, trainingEntry{video: video, frames: count, label: label})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key() < entries[j].key()
	})

	d := &TrainingFrameDataset{
		fs:        fs,
		root:      root,
		entries:   entries,
		processor: preprocessing.NewImageProcessor(preprocessing.FrameSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return d, nil
}

// Len returns the number of sample keys
func (d *TrainingFrameDataset) Len() int {
	return len(d.entries)
}

// Key returns the sample key at index
func (d *TrainingFrameDataset) Key(index int) (string, error) {
	if index < 0 || index >= len(d.entries) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, len(d.entries))
	}
	return d.entries[index].key(), nil
}

// NumClasses returns the number of distinct labels
func (d *TrainingFrameDataset) NumClasses() int {
	seen := make(map[int]struct{})
	for _, e := range d.entries {
		seen[e.label] = struct{}{}
	}
	return len(seen)
}

// Get samples a frame of the video at index and returns it transformed
func (d *TrainingFrameDataset) Get(index int) (*Sample, error) {
	if index < 0 || index >= len(d.entries) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, len(d.entries))
	}
	entry := d.entries[index]
	if entry.frames < 1 {
		return nil, errors.Errorf("video %s has no frames", entry.video)
	}

	frame := d.pickFrame(entry.frames)
	path := FramePath(d.root, entry.video, frame)

	img, err := d.processor.LoadFile(d.fs, path)
	if err != nil {
		return nil, err
	}

	var tensor *preprocessing.ProcessedImage
	if d.transform != nil {
		tensor, err = d.transform.Apply(img)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform %s", path)
		}
	} else {
		tensor = preprocessing.ToTensor(img)
	}

	return &Sample{
		Video:  entry.video,
		Frame:  frame,
		Path:   path,
		Tensor: tensor,
		Label:  entry.label - 1,
	}, nil
}

// pickFrame returns a uniformly random frame index in [1, n]
func (d *TrainingFrameDataset) pickFrame(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(n) + 1
}
