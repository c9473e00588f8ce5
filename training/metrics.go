package training

import (
	"github.com/pkg/errors"
)

// ConfusionMatrix counts predictions per (true class, predicted class) pair.
// Predictions are the argmax of each score row.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true_class][predicted_class]
	TotalSamples int
}

// NewConfusionMatrix creates a new confusion matrix
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Reset clears the confusion matrix
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
}

// Update adds one batch of score rows. Rows whose label is outside
// [0, NumClasses) are skipped.
func (cm *ConfusionMatrix) Update(scores []float32, labels []int32) error {
	if len(scores) != len(labels)*cm.NumClasses {
		return errors.Errorf("scores length mismatch: expected %d, got %d", len(labels)*cm.NumClasses, len(scores))
	}

	for i, label := range labels {
		trueClass := int(label)
		if trueClass < 0 || trueClass >= cm.NumClasses {
			continue
		}
		cm.Matrix[trueClass][argmax(scores[i*cm.NumClasses:(i+1)*cm.NumClasses])]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy returns the fraction of samples on the diagonal
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0.0
	}

	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// MacroPrecision averages precision over classes that were predicted at least once
func (cm *ConfusionMatrix) MacroPrecision() float64 {
	sum := 0.0
	validClasses := 0

	for class := 0; class < cm.NumClasses; class++ {
		predicted := 0
		for trueClass := 0; trueClass < cm.NumClasses; trueClass++ {
			predicted += cm.Matrix[trueClass][class]
		}
		if predicted > 0 {
			sum += float64(cm.Matrix[class][class]) / float64(predicted)
			validClasses++
		}
	}

	if validClasses == 0 {
		return 0.0
	}
	return sum / float64(validClasses)
}

// MacroRecall averages recall over classes that occur at least once
func (cm *ConfusionMatrix) MacroRecall() float64 {
	sum := 0.0
	validClasses := 0

	for class, row := range cm.Matrix {
		actual := 0
		for _, n := range row {
			actual += n
		}
		if actual > 0 {
			sum += float64(cm.Matrix[class][class]) / float64(actual)
			validClasses++
		}
	}

	if validClasses == 0 {
		return 0.0
	}
	return sum / float64(validClasses)
}

// MacroF1 is the harmonic mean of MacroPrecision and MacroRecall
func (cm *ConfusionMatrix) MacroF1() float64 {
	precision := cm.MacroPrecision()
	recall := cm.MacroRecall()

	if precision+recall == 0 {
		return 0.0
	}
	return 2 * (precision * recall) / (precision + recall)
}

// PerClassRecall returns the recall of every class, 0 for classes never seen
func (cm *ConfusionMatrix) PerClassRecall() []float64 {
	out := make([]float64, cm.NumClasses)
	for class, row := range cm.Matrix {
		actual := 0
		for _, n := range row {
			actual += n
		}
		if actual > 0 {
			out[class] = float64(row[class]) / float64(actual)
		}
	}
	return out
}

// argmax returns the index of the largest value, the first one on ties
func argmax(row []float32) int {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return best
}
