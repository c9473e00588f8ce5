package training

import (
	"sort"

	"github.com/pkg/errors"
)

// VideoAggregator sums frame-level score rows per video so a clip is classified
// from all of its sampled frames. It is not safe for concurrent use.
type VideoAggregator struct {
	numClasses int
	scores     map[string][]float32
	labels     map[string]int32
}

// NewVideoAggregator creates an aggregator for numClasses-wide score rows
func NewVideoAggregator(numClasses int) *VideoAggregator {
	return &VideoAggregator{
		numClasses: numClasses,
		scores:     make(map[string][]float32),
		labels:     make(map[string]int32),
	}
}

// Add accumulates a batch of frame scores. videos[i] and labels[i] describe row i.
// A batch with a conflicting label is rejected as a whole.
func (va *VideoAggregator) Add(videos []string, scores []float32, labels []int32) error {
	if len(videos) != len(labels) {
		return errors.Errorf("videos/labels length mismatch: %d vs %d", len(videos), len(labels))
	}
	if len(scores) != len(videos)*va.numClasses {
		return errors.Errorf("scores length mismatch: expected %d, got %d", len(videos)*va.numClasses, len(scores))
	}

	batch := make(map[string]int32, len(videos))
	for i, video := range videos {
		prev, ok := batch[video]
		if !ok {
			prev, ok = va.labels[video]
		}
		if ok && prev != labels[i] {
			return errors.Errorf("video %s has conflicting labels %d and %d", video, prev, labels[i])
		}
		batch[video] = labels[i]
	}

	for i, video := range videos {
		va.labels[video] = labels[i]
		sum, ok := va.scores[video]
		if !ok {
			sum = make([]float32, va.numClasses)
			va.scores[video] = sum
		}
		for j, s := range scores[i*va.numClasses : (i+1)*va.numClasses] {
			sum[j] += s
		}
	}
	return nil
}

// Len returns the number of videos seen
func (va *VideoAggregator) Len() int {
	return len(va.scores)
}

// Reset forgets every video
func (va *VideoAggregator) Reset() {
	va.scores = make(map[string][]float32)
	va.labels = make(map[string]int32)
}

// Batch returns the aggregated rows in video-name order
func (va *VideoAggregator) Batch() (videos []string, scores []float32, labels []int32) {
	videos = make([]string, 0, len(va.scores))
	for video := range va.scores {
		videos = append(videos, video)
	}
	sort.Strings(videos)

	scores = make([]float32, 0, len(videos)*va.numClasses)
	labels = make([]int32, 0, len(videos))
	for _, video := range videos {
		scores = append(scores, va.scores[video]...)
		labels = append(labels, va.labels[video])
	}
	return videos, scores, labels
}

// Accuracy returns video-level top-k precision for each k
func (va *VideoAggregator) Accuracy(ks ...int) ([]float64, error) {
	_, scores, labels := va.Batch()
	return Accuracy(scores, va.numClasses, labels, ks...)
}

// ConfusionMatrix builds a video-level confusion matrix
func (va *VideoAggregator) ConfusionMatrix() (*ConfusionMatrix, error) {
	_, scores, labels := va.Batch()
	cm := NewConfusionMatrix(va.numClasses)
	if err := cm.Update(scores, labels); err != nil {
		return nil, err
	}
	return cm, nil
}
