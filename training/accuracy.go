package training

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrEmptyBatch is returned when accuracy is requested for a batch with no rows
var ErrEmptyBatch = errors.New("empty batch")

// Accuracy computes top-k precision for each k in ks.
//
// scores holds batch rows of numClasses scores each, row-major, the same layout
// the confusion matrix consumes. The result has one percentage in [0, 100] per k,
// in the order requested. Equal scores rank the lower class index first.
func Accuracy(scores []float32, numClasses int, labels []int32, ks ...int) ([]float64, error) {
	batchSize := len(labels)
	if batchSize == 0 {
		return nil, ErrEmptyBatch
	}
	if numClasses <= 0 {
		return nil, errors.Errorf("invalid class count %d", numClasses)
	}
	if len(scores) != batchSize*numClasses {
		return nil, errors.Errorf("scores length mismatch: expected %d, got %d", batchSize*numClasses, len(scores))
	}
	if len(ks) == 0 {
		ks = []int{1}
	}

	maxK := 0
	for _, k := range ks {
		if k <= 0 {
			return nil, errors.Errorf("invalid k %d", k)
		}
		if k > maxK {
			maxK = k
		}
	}
	if maxK > numClasses {
		maxK = numClasses
	}

	// ranks[i] is the position of the true label within row i's ranking, or -1 when
	// it is not in the top maxK
	ranks := make([]int, batchSize)
	order := make([]int, numClasses)
	for i := 0; i < batchSize; i++ {
		row := scores[i*numClasses : (i+1)*numClasses]
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			return row[order[a]] > row[order[b]]
		})

		ranks[i] = -1
		for pos := 0; pos < maxK; pos++ {
			if int32(order[pos]) == labels[i] {
				ranks[i] = pos
				break
			}
		}
	}

	res := make([]float64, len(ks))
	for idx, k := range ks {
		correct := 0
		for _, r := range ranks {
			if r >= 0 && r < k {
				correct++
			}
		}
		res[idx] = float64(correct) * 100.0 / float64(batchSize)
	}
	return res, nil
}
