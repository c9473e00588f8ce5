package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfusionMatrix(t *testing.T) {
	cm := NewConfusionMatrix(3)

	assert.Equal(t, 3, cm.NumClasses)
	require.Len(t, cm.Matrix, 3)
	for _, row := range cm.Matrix {
		assert.Equal(t, []int{0, 0, 0}, row)
	}
	assert.Equal(t, 0, cm.TotalSamples)
	assert.Equal(t, 0.0, cm.Accuracy())
	assert.Equal(t, 0.0, cm.MacroF1())
}

func TestConfusionMatrixUpdate(t *testing.T) {
	cm := NewConfusionMatrix(3)
	scores := []float32{
		0.7, 0.2, 0.1, // pred 0, true 0
		0.1, 0.8, 0.1, // pred 1, true 1
		0.6, 0.3, 0.1, // pred 0, true 2
		0.1, 0.2, 0.7, // pred 2, true 2
		0.3, 0.3, 0.3, // skipped, label out of range
	}
	require.NoError(t, cm.Update(scores, []int32{0, 1, 2, 2, 9}))

	assert.Equal(t, 4, cm.TotalSamples)
	assert.Equal(t, 1, cm.Matrix[2][0])
	assert.InDelta(t, 0.75, cm.Accuracy(), 1e-9)

	// precision: class0 1/2, class1 1/1, class2 1/1
	assert.InDelta(t, (0.5+1+1)/3, cm.MacroPrecision(), 1e-9)
	// recall: class0 1/1, class1 1/1, class2 1/2
	assert.InDelta(t, (1+1+0.5)/3, cm.MacroRecall(), 1e-9)
	assert.InDelta(t, 2.5/3, cm.MacroF1(), 1e-9)
	assert.Equal(t, []float64{1, 1, 0.5}, cm.PerClassRecall())

	assert.Error(t, cm.Update([]float32{1, 2}, []int32{0}))

	cm.Reset()
	assert.Equal(t, 0, cm.TotalSamples)
	assert.Equal(t, 0, cm.Matrix[2][0])
}
